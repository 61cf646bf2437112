package classify

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

const (
	// DefaultAIThreshold is the minimum AI confidence accepted before falling
	// back to the generic bucket.
	DefaultAIThreshold = 0.65

	// FallbackConfidence is deliberately low so reviewers can filter entries
	// that nobody actually classified.
	FallbackConfidence = 0.3
)

// Decider combines the rule table and the AI classifier into one category
// decision. Rules are trusted unconditionally when specific; the AI is only
// consulted when rules give nothing or only the generic bucket. Decide never
// returns an error: AI failure is absorbed into a fallback result.
type Decider struct {
	Rules       *RuleTable
	AI          Classifier
	Chart       map[string]models.ChartOfAccount
	AIThreshold float64
}

// AIThresholdFromEnv reads CLASSIFY_AI_THRESHOLD, keeping the default on
// missing or out-of-range values.
func AIThresholdFromEnv() float64 {
	raw := strings.TrimSpace(os.Getenv("CLASSIFY_AI_THRESHOLD"))
	if raw == "" {
		return DefaultAIThreshold
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		return DefaultAIThreshold
	}
	return v
}

// Decide resolves the category for one document.
func (d *Decider) Decide(ctx context.Context, doc models.SourceDocument) models.ClassificationResult {
	threshold := d.AIThreshold
	if threshold <= 0 {
		threshold = DefaultAIThreshold
	}

	ruleText := doc.VendorName
	if doc.Description != "" {
		ruleText = doc.VendorName + " " + doc.Description
	}

	code, generic, matched := d.Rules.Match(doc.Type, ruleText)
	if matched && !generic {
		return models.ClassificationResult{
			AccountCode: code,
			Confidence:  1.0,
			Reasoning:   fmt.Sprintf("matched rule for vendor %q", doc.VendorName),
			Source:      models.ClassificationSourceRule,
		}
	}

	fallbackCode := models.GenericAccountCode(doc.Type)
	if matched && generic {
		fallbackCode = code
	}

	if d.AI == nil {
		return d.fallback(fallbackCode, "no ai classifier configured")
	}

	res, err := d.AI.Classify(ctx, Request{
		DocumentType: doc.Type,
		VendorName:   doc.VendorName,
		Amount:       MajorUnits(doc.AmountMinorUnits),
		Description:  doc.Description,
		IssuedDate:   doc.IssuedDate,
	})
	if err != nil {
		config.LogError(config.GetLogger(), "classify", "Decide", "ai classification failed", doc.ExternalId, err)
		return d.fallback(fallbackCode, fmt.Sprintf("ai call failed: %v", err))
	}

	if reason, ok := d.validateAIResult(doc.Type, res); !ok {
		config.LogWarn(config.GetLogger(), "classify", "Decide", "ai result rejected: "+reason, doc.ExternalId)
		return d.fallback(fallbackCode, "ai result rejected: "+reason)
	}

	if res.Confidence < threshold {
		return d.fallback(fallbackCode,
			fmt.Sprintf("ai confidence %.2f below threshold %.2f (suggested %s)", res.Confidence, threshold, res.AccountCode))
	}

	return models.ClassificationResult{
		AccountCode: res.AccountCode,
		Confidence:  res.Confidence,
		Reasoning:   res.Reasoning,
		Source:      models.ClassificationSourceAI,
	}
}

// validateAIResult enforces the closed category set and a sane confidence
// before an AI verdict may be accepted. Any violation is treated identically
// to an AI failure.
func (d *Decider) validateAIResult(docType models.DocumentType, res Result) (string, bool) {
	acc, ok := d.Chart[res.AccountCode]
	if !ok {
		return fmt.Sprintf("unknown account code %q", res.AccountCode), false
	}
	if acc.Type != docType {
		return fmt.Sprintf("account %s is %s, document is %s", res.AccountCode, acc.Type, docType), false
	}
	if math.IsNaN(res.Confidence) || math.IsInf(res.Confidence, 0) || res.Confidence < 0 || res.Confidence > 1 {
		return fmt.Sprintf("confidence %v out of range", res.Confidence), false
	}
	return "", true
}

func (d *Decider) fallback(code string, cause string) models.ClassificationResult {
	return models.ClassificationResult{
		AccountCode: code,
		Confidence:  FallbackConfidence,
		Reasoning:   "fallback to generic category: " + cause,
		Source:      models.ClassificationSourceFallback,
	}
}

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClassifier satisfies Classifier using Google's GenAI API.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	chart  map[string]models.ChartOfAccount
}

func NewGeminiClassifier(ctx context.Context, chart map[string]models.ChartOfAccount) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClassifier{client: client, model: model, chart: chart}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	prompt := g.buildPrompt(req)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Result{}, classifyGenAIError(err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return Result{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	return parseVerdict(rawText)
}

func (g *GeminiClassifier) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are an accounting assistant classifying a business transaction ")
	b.WriteString("into a chart-of-accounts category.\n\n")
	b.WriteString("Valid categories for this transaction:\n")
	b.WriteString(g.categoriesPrompt(req.DocumentType))
	b.WriteString("\nTransaction:\n")
	fmt.Fprintf(&b, "- type: %s\n", req.DocumentType)
	fmt.Fprintf(&b, "- vendor: %s\n", req.VendorName)
	fmt.Fprintf(&b, "- amount: %s\n", req.Amount.StringFixed(2))
	if req.Description != "" {
		fmt.Fprintf(&b, "- description: %s\n", req.Description)
	}
	if !req.IssuedDate.IsZero() {
		fmt.Fprintf(&b, "- date: %s\n", req.IssuedDate.Format("2006-01-02"))
	}
	b.WriteString("\nOutput STRICT JSON only (no comments, no extra text):\n")
	b.WriteString("{\"account_code\": string (one of the codes above), ")
	b.WriteString("\"confidence\": number between 0 and 1, ")
	b.WriteString("\"reasoning\": short string}\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	return b.String()
}

func (g *GeminiClassifier) categoriesPrompt(docType models.DocumentType) string {
	codes := make([]string, 0, len(g.chart))
	for code, acc := range g.chart {
		if acc.Type == docType {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	var b strings.Builder
	for _, code := range codes {
		fmt.Fprintf(&b, "- %s: %s\n", code, g.chart[code].Name)
	}
	return b.String()
}

func classifyGenAIError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota") {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// parseVerdict extracts the JSON verdict, tolerating the Markdown fences
// models emit when they ignore instructions.
func parseVerdict(raw string) (Result, error) {
	clean := cleanModelJSON(raw)

	var res Result
	if err := json.Unmarshal([]byte(clean), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(res.AccountCode) == "" {
		return Result{}, fmt.Errorf("%w: missing account_code", ErrMalformedResponse)
	}
	return res, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
			s = strings.TrimSpace(s)
		}
	}

	return s
}

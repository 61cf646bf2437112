package classify

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

type fakeClassifier struct {
	result Result
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

func expenseDoc(vendor string) models.SourceDocument {
	return models.SourceDocument{
		ExternalId:       "doc-001",
		ClientId:         "client-1",
		Type:             models.DocumentTypeExpense,
		VendorName:       vendor,
		AmountMinorUnits: 150000,
		IssuedDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func newDecider(ai Classifier) *Decider {
	return &Decider{
		Rules:       DefaultRuleTable(),
		AI:          ai,
		Chart:       testChart(),
		AIThreshold: DefaultAIThreshold,
	}
}

func TestDecideSpecificRuleSkipsAI(t *testing.T) {
	ai := &fakeClassifier{err: ErrUnavailable}
	d := newDecider(ai)

	res := d.Decide(context.Background(), expenseDoc("Provincial Electricity Authority (PEA)"))
	if res.AccountCode != "5110" {
		t.Fatalf("expected 5110, got %s", res.AccountCode)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", res.Confidence)
	}
	if res.Source != models.ClassificationSourceRule {
		t.Fatalf("expected rule source, got %s", res.Source)
	}
	if ai.calls != 0 {
		t.Fatalf("AI must not be consulted on a specific rule match, got %d calls", ai.calls)
	}
}

func TestDecideUnknownVendorWithUnreachableAI(t *testing.T) {
	d := newDecider(&fakeClassifier{err: ErrUnavailable})

	res := d.Decide(context.Background(), expenseDoc("Somchai Trading Co."))
	if res.AccountCode != "5000" {
		t.Fatalf("expected generic 5000, got %s", res.AccountCode)
	}
	if res.Confidence != FallbackConfidence {
		t.Fatalf("expected fallback confidence %v, got %v", FallbackConfidence, res.Confidence)
	}
	if res.Source != models.ClassificationSourceFallback {
		t.Fatalf("expected fallback source, got %s", res.Source)
	}
}

func TestDecideAcceptsConfidentAIResult(t *testing.T) {
	ai := &fakeClassifier{result: Result{AccountCode: "5600", Confidence: 0.91, Reasoning: "professional services vendor"}}
	d := newDecider(ai)

	res := d.Decide(context.Background(), expenseDoc("Somchai Trading Co."))
	if res.AccountCode != "5600" {
		t.Fatalf("expected AI code 5600, got %s", res.AccountCode)
	}
	if res.Confidence != 0.91 {
		t.Fatalf("expected confidence 0.91, got %v", res.Confidence)
	}
	if res.Source != models.ClassificationSourceAI {
		t.Fatalf("expected ai source, got %s", res.Source)
	}
}

func TestDecideRejectsLowConfidence(t *testing.T) {
	ai := &fakeClassifier{result: Result{AccountCode: "5600", Confidence: 0.40}}
	d := newDecider(ai)

	res := d.Decide(context.Background(), expenseDoc("Somchai Trading Co."))
	if res.AccountCode != "5000" || res.Source != models.ClassificationSourceFallback {
		t.Fatalf("expected fallback, got code=%s source=%s", res.AccountCode, res.Source)
	}
}

func TestDecideRejectsInvalidAIVerdicts(t *testing.T) {
	cases := []struct {
		name   string
		result Result
	}{
		{"unknown code", Result{AccountCode: "9999", Confidence: 0.95}},
		{"wrong type", Result{AccountCode: "4100", Confidence: 0.95}},
		{"nan confidence", Result{AccountCode: "5600", Confidence: math.NaN()}},
		{"negative confidence", Result{AccountCode: "5600", Confidence: -0.1}},
		{"confidence above one", Result{AccountCode: "5600", Confidence: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDecider(&fakeClassifier{result: tc.result})
			res := d.Decide(context.Background(), expenseDoc("Somchai Trading Co."))
			if res.Source != models.ClassificationSourceFallback {
				t.Fatalf("expected fallback, got source=%s code=%s", res.Source, res.AccountCode)
			}
			if res.AccountCode != "5000" {
				t.Fatalf("expected generic 5000, got %s", res.AccountCode)
			}
		})
	}
}

func TestDecideGenericRuleMatchStillConsultsAI(t *testing.T) {
	ai := &fakeClassifier{result: Result{AccountCode: "5300", Confidence: 0.88}}
	d := newDecider(ai)

	res := d.Decide(context.Background(), expenseDoc("Miscellaneous supplies"))
	if ai.calls != 1 {
		t.Fatalf("expected AI consulted on generic match, got %d calls", ai.calls)
	}
	if res.AccountCode != "5300" || res.Source != models.ClassificationSourceAI {
		t.Fatalf("expected AI 5300, got code=%s source=%s", res.AccountCode, res.Source)
	}
}

func TestDecideGenericRuleMatchIsFallbackCode(t *testing.T) {
	// When the AI fails after a generic rule match, the matched generic code
	// is the fallback.
	d := newDecider(&fakeClassifier{err: errors.New("boom")})

	res := d.Decide(context.Background(), models.SourceDocument{
		ExternalId:       "doc-002",
		ClientId:         "client-1",
		Type:             models.DocumentTypeIncome,
		VendorName:       "misc deposit",
		AmountMinorUnits: 5000,
	})
	if res.AccountCode != "4000" || res.Source != models.ClassificationSourceFallback {
		t.Fatalf("expected fallback 4000, got code=%s source=%s", res.AccountCode, res.Source)
	}
}

func TestDecideNilAIFallsBack(t *testing.T) {
	d := newDecider(nil)

	res := d.Decide(context.Background(), expenseDoc("Somchai Trading Co."))
	if res.AccountCode != "5000" || res.Source != models.ClassificationSourceFallback {
		t.Fatalf("expected fallback, got code=%s source=%s", res.AccountCode, res.Source)
	}
}

func TestAIThresholdFromEnv(t *testing.T) {
	t.Setenv("CLASSIFY_AI_THRESHOLD", "")
	if v := AIThresholdFromEnv(); v != DefaultAIThreshold {
		t.Fatalf("expected default %v, got %v", DefaultAIThreshold, v)
	}

	t.Setenv("CLASSIFY_AI_THRESHOLD", "0.8")
	if v := AIThresholdFromEnv(); v != 0.8 {
		t.Fatalf("expected 0.8, got %v", v)
	}

	t.Setenv("CLASSIFY_AI_THRESHOLD", "1.7")
	if v := AIThresholdFromEnv(); v != DefaultAIThreshold {
		t.Fatalf("expected default on out-of-range, got %v", v)
	}

	t.Setenv("CLASSIFY_AI_THRESHOLD", "abc")
	if v := AIThresholdFromEnv(); v != DefaultAIThreshold {
		t.Fatalf("expected default on garbage, got %v", v)
	}
}

func TestClassifyBatchIsolatesFailures(t *testing.T) {
	ai := &sequenceClassifier{
		results: []Result{{AccountCode: "5100", Confidence: 0.9}, {}, {AccountCode: "5200", Confidence: 0.8}},
		errs:    []error{nil, ErrRateLimited, nil},
	}

	reqs := []Request{
		{DocumentType: models.DocumentTypeExpense, VendorName: "a"},
		{DocumentType: models.DocumentTypeExpense, VendorName: "b"},
		{DocumentType: models.DocumentTypeExpense, VendorName: "c"},
	}
	items := ClassifyBatch(context.Background(), ai, reqs, 0)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Err != nil || items[0].Result.AccountCode != "5100" {
		t.Fatalf("item 0 unexpected: %+v", items[0])
	}
	if !errors.Is(items[1].Err, ErrRateLimited) {
		t.Fatalf("item 1 expected rate limited, got %v", items[1].Err)
	}
	if items[2].Err != nil || items[2].Result.AccountCode != "5200" {
		t.Fatalf("item 2 unexpected: %+v", items[2])
	}
}

func TestClassifyBatchRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ai := &fakeClassifier{result: Result{AccountCode: "5100", Confidence: 0.9}}
	reqs := []Request{
		{DocumentType: models.DocumentTypeExpense, VendorName: "a"},
		{DocumentType: models.DocumentTypeExpense, VendorName: "b"},
	}
	items := ClassifyBatch(ctx, ai, reqs, time.Second)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// First item runs before any delay; second is aborted by the cancelled
	// context during the pacing wait.
	if items[0].Err != nil {
		t.Fatalf("first item should run, got %v", items[0].Err)
	}
	if !errors.Is(items[1].Err, context.Canceled) {
		t.Fatalf("second item expected context.Canceled, got %v", items[1].Err)
	}
}

type sequenceClassifier struct {
	results []Result
	errs    []error
	idx     int
}

func (s *sequenceClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	i := s.idx
	s.idx++
	return s.results[i], s.errs[i]
}

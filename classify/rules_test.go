package classify

import (
	"os"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

func testChart() map[string]models.ChartOfAccount {
	chart := make(map[string]models.ChartOfAccount)
	for _, acc := range models.DefaultChart() {
		chart[acc.Code] = acc
	}
	return chart
}

func TestRuleTableMatchSpecific(t *testing.T) {
	table := DefaultRuleTable()

	cases := []struct {
		name     string
		docType  models.DocumentType
		text     string
		wantCode string
	}{
		{"utility provider", models.DocumentTypeExpense, "Provincial Electricity Authority (PEA)", "5110"},
		{"utility provider lowercase", models.DocumentTypeExpense, "provincial electricity authority", "5110"},
		{"telecom", models.DocumentTypeExpense, "True Internet Co., Ltd.", "5120"},
		{"rent", models.DocumentTypeExpense, "Office rent March", "5100"},
		{"payroll", models.DocumentTypeExpense, "Monthly payroll transfer", "5200"},
		{"travel", models.DocumentTypeExpense, "Grab ride to client site", "5400"},
		{"ads", models.DocumentTypeExpense, "Facebook Ads invoice 99", "5500"},
		{"bank fee", models.DocumentTypeExpense, "Inter-bank transfer fee", "5700"},
		{"sales income", models.DocumentTypeIncome, "POS daily sales", "4100"},
		{"service income", models.DocumentTypeIncome, "Consulting retainer", "4200"},
		{"interest income", models.DocumentTypeIncome, "Savings interest Q1", "4300"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, generic, matched := table.Match(tc.docType, tc.text)
			if !matched {
				t.Fatalf("expected match for %q", tc.text)
			}
			if generic {
				t.Fatalf("expected specific match for %q, got generic", tc.text)
			}
			if code != tc.wantCode {
				t.Fatalf("expected %s for %q, got %s", tc.wantCode, tc.text, code)
			}
		})
	}
}

func TestRuleTableMatchGeneric(t *testing.T) {
	table := DefaultRuleTable()

	code, generic, matched := table.Match(models.DocumentTypeExpense, "Miscellaneous purchase")
	if !matched || !generic {
		t.Fatalf("expected generic match, got matched=%v generic=%v", matched, generic)
	}
	if code != "5000" {
		t.Fatalf("expected 5000, got %s", code)
	}

	code, generic, matched = table.Match(models.DocumentTypeIncome, "misc deposit")
	if !matched || !generic || code != "4000" {
		t.Fatalf("expected generic 4000 match, got code=%s matched=%v generic=%v", code, matched, generic)
	}
}

func TestRuleTableNoMatch(t *testing.T) {
	table := DefaultRuleTable()
	code, generic, matched := table.Match(models.DocumentTypeExpense, "Somchai Trading Co.")
	if matched || generic || code != "" {
		t.Fatalf("expected no match, got code=%s matched=%v generic=%v", code, matched, generic)
	}
}

func TestRuleTableFirstMatchWins(t *testing.T) {
	table := DefaultRuleTable()
	// "electricity authority" also contains "electric"; the specific rule
	// must win because it sits first.
	code, _, matched := table.Match(models.DocumentTypeExpense, "metropolitan electricity authority bill")
	if !matched || code != "5110" {
		t.Fatalf("expected 5110, got %s (matched=%v)", code, matched)
	}
}

func TestLoadRuleTableOverridesTakePriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := []byte("expense:\n  - keyword: \"grab\"\n    account_code: \"5600\"\nincome:\n  - keyword: \"royalty\"\n    account_code: \"4200\"\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadRuleTable(path, testChart())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Override outranks the built-in grab -> 5400 rule.
	code, _, matched := table.Match(models.DocumentTypeExpense, "Grab ride downtown")
	if !matched || code != "5600" {
		t.Fatalf("expected override 5600, got %s (matched=%v)", code, matched)
	}

	code, _, matched = table.Match(models.DocumentTypeIncome, "Royalty payment")
	if !matched || code != "4200" {
		t.Fatalf("expected 4200, got %s (matched=%v)", code, matched)
	}

	// Built-in rules still work.
	code, _, matched = table.Match(models.DocumentTypeExpense, "office rent")
	if !matched || code != "5100" {
		t.Fatalf("expected built-in 5100, got %s (matched=%v)", code, matched)
	}
}

func TestLoadRuleTableRejectsUnknownCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := []byte("expense:\n  - keyword: \"grab\"\n    account_code: \"9999\"\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRuleTable(path, testChart()); err == nil {
		t.Fatal("expected error for account code outside the chart")
	}
}

func TestLoadRuleTableEmptyPathReturnsDefaults(t *testing.T) {
	table, err := LoadRuleTable("", testChart())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code, _, matched := table.Match(models.DocumentTypeExpense, "insurance premium")
	if !matched || code != "5800" {
		t.Fatalf("expected default 5800, got %s (matched=%v)", code, matched)
	}
}

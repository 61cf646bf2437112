package classify

import (
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"gopkg.in/yaml.v2"
)

// Rule maps a keyword to an account code. Matching is case-insensitive
// substring; the first matching rule in table order wins, so order is part
// of the configuration (a specific provider rule goes before the broad
// keyword that would also catch it).
type Rule struct {
	Keyword     string `yaml:"keyword"`
	AccountCode string `yaml:"account_code"`
}

// RuleTable holds priority-ordered rules partitioned by document type. It is
// read-only after construction.
type RuleTable struct {
	expense []Rule
	income  []Rule
}

// Match returns the first matching rule's account code. generic reports
// whether the matched code is the type's last-resort bucket, which callers
// treat as low-trust: a generic match still consults the AI for a better
// category, unlike a specific match which is final.
func (t *RuleTable) Match(docType models.DocumentType, vendorOrDescription string) (code string, generic bool, matched bool) {
	text := strings.ToLower(vendorOrDescription)
	for _, rule := range t.rulesFor(docType) {
		if rule.Keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(rule.Keyword)) {
			return rule.AccountCode, rule.AccountCode == models.GenericAccountCode(docType), true
		}
	}
	return "", false, false
}

func (t *RuleTable) rulesFor(docType models.DocumentType) []Rule {
	if docType == models.DocumentTypeIncome {
		return t.income
	}
	return t.expense
}

// DefaultRuleTable is the built-in Thai-market table. Specific vendor rules
// sit above the broad keyword rules that would also match them; the
// miscellaneous rules at the bottom route to the generic buckets.
func DefaultRuleTable() *RuleTable {
	return &RuleTable{
		expense: []Rule{
			// specific utility providers before the generic utility keywords
			{Keyword: "electricity authority", AccountCode: "5110"},
			{Keyword: "(pea)", AccountCode: "5110"},
			{Keyword: "(mea)", AccountCode: "5110"},
			{Keyword: "metropolitan waterworks", AccountCode: "5110"},
			{Keyword: "electric", AccountCode: "5110"},
			{Keyword: "water bill", AccountCode: "5110"},
			{Keyword: "utilit", AccountCode: "5110"},

			{Keyword: "true internet", AccountCode: "5120"},
			{Keyword: "ais fibre", AccountCode: "5120"},
			{Keyword: "dtac", AccountCode: "5120"},
			{Keyword: "internet", AccountCode: "5120"},
			{Keyword: "phone", AccountCode: "5120"},

			{Keyword: "rent", AccountCode: "5100"},
			{Keyword: "lease", AccountCode: "5100"},

			{Keyword: "salary", AccountCode: "5200"},
			{Keyword: "payroll", AccountCode: "5200"},
			{Keyword: "wage", AccountCode: "5200"},

			{Keyword: "office supply", AccountCode: "5300"},
			{Keyword: "stationery", AccountCode: "5300"},

			{Keyword: "flight", AccountCode: "5400"},
			{Keyword: "hotel", AccountCode: "5400"},
			{Keyword: "taxi", AccountCode: "5400"},
			{Keyword: "grab", AccountCode: "5400"},

			{Keyword: "facebook ads", AccountCode: "5500"},
			{Keyword: "google ads", AccountCode: "5500"},
			{Keyword: "advertis", AccountCode: "5500"},
			{Keyword: "marketing", AccountCode: "5500"},

			{Keyword: "audit", AccountCode: "5600"},
			{Keyword: "legal", AccountCode: "5600"},
			{Keyword: "consultant", AccountCode: "5600"},

			{Keyword: "bank fee", AccountCode: "5700"},
			{Keyword: "transfer fee", AccountCode: "5700"},

			{Keyword: "insurance", AccountCode: "5800"},

			// deliberate last-resort bucket; still LOW-TRUST for the decider
			{Keyword: "miscellaneous", AccountCode: "5000"},
			{Keyword: "misc", AccountCode: "5000"},
		},
		income: []Rule{
			{Keyword: "invoice", AccountCode: "4100"},
			{Keyword: "sale", AccountCode: "4100"},
			{Keyword: "pos", AccountCode: "4100"},

			{Keyword: "service fee", AccountCode: "4200"},
			{Keyword: "consulting", AccountCode: "4200"},
			{Keyword: "commission", AccountCode: "4200"},

			{Keyword: "interest", AccountCode: "4300"},

			{Keyword: "miscellaneous", AccountCode: "4000"},
			{Keyword: "misc", AccountCode: "4000"},
		},
	}
}

type ruleFile struct {
	Expense []Rule `yaml:"expense"`
	Income  []Rule `yaml:"income"`
}

// LoadRuleTable builds the runtime table. When path is non-empty, rules from
// the YAML file are placed AHEAD of the defaults so operators can override
// priority without editing code. Codes outside the chart are rejected.
func LoadRuleTable(path string, chart map[string]models.ChartOfAccount) (*RuleTable, error) {
	table := DefaultRuleTable()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}

	for _, rule := range append(append([]Rule{}, file.Expense...), file.Income...) {
		if strings.TrimSpace(rule.Keyword) == "" {
			return nil, fmt.Errorf("rule file %s: empty keyword", path)
		}
		if _, ok := chart[rule.AccountCode]; !ok {
			return nil, fmt.Errorf("rule file %s: account code %q not in chart", path, rule.AccountCode)
		}
	}

	table.expense = append(append([]Rule{}, file.Expense...), table.expense...)
	table.income = append(append([]Rule{}, file.Income...), table.income...)
	return table, nil
}

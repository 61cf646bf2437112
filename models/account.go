package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
)

// ChartOfAccount is one entry of the closed chart-of-accounts set. The chart
// is read-only at runtime; rows are created by the seeder and never mutated
// by sync or export.
type ChartOfAccount struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Code      string         `gorm:"uniqueIndex;size:16;not null" json:"code"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Type      DocumentType   `gorm:"size:20;not null" json:"type"`
	Nature    EntryDirection `gorm:"size:10;not null" json:"nature"`
	IsGeneric bool           `gorm:"default:false" json:"is_generic"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// GenericAccountCode returns the designated last-resort bucket per document
// type. It is a real chart member, distinct from "no rule matched".
func GenericAccountCode(docType DocumentType) string {
	if docType == DocumentTypeIncome {
		return "4000"
	}
	return "5000"
}

// DefaultChart is the seed chart. Expense accounts carry debit nature,
// income accounts credit nature.
func DefaultChart() []ChartOfAccount {
	return []ChartOfAccount{
		// income
		{Code: "4000", Name: "Other Income", Type: DocumentTypeIncome, Nature: EntryDirectionCredit, IsGeneric: true},
		{Code: "4100", Name: "Sales Revenue", Type: DocumentTypeIncome, Nature: EntryDirectionCredit},
		{Code: "4200", Name: "Service Income", Type: DocumentTypeIncome, Nature: EntryDirectionCredit},
		{Code: "4300", Name: "Interest Income", Type: DocumentTypeIncome, Nature: EntryDirectionCredit},
		// expense
		{Code: "5000", Name: "General Expenses", Type: DocumentTypeExpense, Nature: EntryDirectionDebit, IsGeneric: true},
		{Code: "5100", Name: "Rent Expense", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5110", Name: "Utilities Expense", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5120", Name: "Communication Expense", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5200", Name: "Salaries and Wages", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5300", Name: "Office Supplies", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5400", Name: "Travel Expense", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5500", Name: "Marketing and Advertising", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5600", Name: "Professional Fees", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5700", Name: "Bank Charges", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
		{Code: "5800", Name: "Insurance Expense", Type: DocumentTypeExpense, Nature: EntryDirectionDebit},
	}
}

// SeedChartOfAccounts inserts missing default chart rows. Existing codes are
// left untouched.
func SeedChartOfAccounts(ctx context.Context) error {
	db := config.GetDB().WithContext(ctx)
	for _, acc := range DefaultChart() {
		var count int64
		if err := db.Model(&ChartOfAccount{}).Where("code = ?", acc.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		record := acc
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	}
	_ = config.RemoveRedisKey(chartCacheKey)
	return nil
}

const chartCacheKey = "ChartOfAccountMap"

// GetChartMap returns the chart keyed by account code, cached in redis since
// the chart never changes at runtime.
func GetChartMap(ctx context.Context) (map[string]ChartOfAccount, error) {
	var cached map[string]ChartOfAccount
	if ok, err := config.GetRedisObject(chartCacheKey, &cached); err == nil && ok && len(cached) > 0 {
		return cached, nil
	}

	var rows []ChartOfAccount
	if err := config.GetDB().WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}

	chart := make(map[string]ChartOfAccount, len(rows))
	for _, row := range rows {
		chart[row.Code] = row
	}
	_ = config.SetRedisObject(chartCacheKey, chart, 0)
	return chart, nil
}

// GetAccountByCode looks one code up, returning utils.ErrorRecordNotFound
// semantics via (zero, false).
func GetAccountByCode(ctx context.Context, code string) (ChartOfAccount, bool, error) {
	chart, err := GetChartMap(ctx)
	if err != nil {
		return ChartOfAccount{}, false, err
	}
	acc, ok := chart[code]
	return acc, ok, nil
}

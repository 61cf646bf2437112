// Package classify decides which chart-of-accounts category a provider
// document belongs to, combining a deterministic keyword rule table with an
// AI classifier behind a capability interface.
package classify

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrRateLimited means the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("ai classifier rate limited")

	// ErrUnavailable means the provider could not be reached or errored.
	ErrUnavailable = errors.New("ai classifier unavailable")

	// ErrMalformedResponse means the provider answered with something that is
	// not a usable classification.
	ErrMalformedResponse = errors.New("ai classifier returned malformed response")
)

// Request is a normalized transaction description handed to a classifier.
// Amount is in major units for prompt context only; stored amounts stay in
// minor units everywhere else.
type Request struct {
	DocumentType models.DocumentType
	VendorName   string
	Amount       decimal.Decimal
	Description  string
	IssuedDate   time.Time
}

// Result is a raw classifier verdict, before the decider validates it.
type Result struct {
	AccountCode string  `json:"account_code"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Classifier is the AI capability contract. Implementations are
// interchangeable providers; the decider never depends on a specific vendor.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// BatchItem pairs one request with its isolated outcome.
type BatchItem struct {
	Request Request
	Result  Result
	Err     error
}

// ClassifyBatch runs requests sequentially with a mandatory pacing delay
// between calls. The delay is a throttle to stay under provider quotas, not
// a retry. One item's failure never aborts the remaining items.
func ClassifyBatch(ctx context.Context, c Classifier, reqs []Request, delay time.Duration) []BatchItem {
	items := make([]BatchItem, 0, len(reqs))
	for i, req := range reqs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				items = append(items, BatchItem{Request: req, Err: ctx.Err()})
				continue
			case <-time.After(delay):
			}
		}
		res, err := c.Classify(ctx, req)
		items = append(items, BatchItem{Request: req, Result: res, Err: err})
	}
	return items
}

// MajorUnits converts a minor-unit integer amount for prompt context.
func MajorUnits(amountMinorUnits int64) decimal.Decimal {
	return decimal.New(amountMinorUnits, -2)
}

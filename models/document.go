package models

import "time"

// SourceDocument is an immutable snapshot of a provider document fetched
// during one sync run. It is never persisted as-is; the journal entry it
// produces carries its external id.
type SourceDocument struct {
	ExternalId       string       `json:"external_id"`
	ClientId         string       `json:"client_id"`
	Type             DocumentType `json:"type"`
	VendorName       string       `json:"vendor_name"`
	AmountMinorUnits int64        `json:"amount_minor_units"`
	Description      string       `json:"description"`
	IssuedDate       time.Time    `json:"issued_date"`
}

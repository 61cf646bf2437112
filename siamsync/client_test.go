package siamsync

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
)

func TestMapDocument(t *testing.T) {
	d := siamDocument{
		ID:          "INV-100",
		Type:        "Expense",
		VendorName:  " Provincial Electricity Authority ",
		Amount:      json.Number("1234.50"),
		Description: "April electricity",
		IssuedDate:  "2026-04-01T09:30:00+07:00",
	}

	doc, err := mapDocument("client-1", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ExternalId != "INV-100" || doc.ClientId != "client-1" {
		t.Fatalf("unexpected identity: %+v", doc)
	}
	if doc.Type != models.DocumentTypeExpense {
		t.Fatalf("expected expense, got %s", doc.Type)
	}
	if doc.AmountMinorUnits != 123450 {
		t.Fatalf("expected 123450 minor units, got %d", doc.AmountMinorUnits)
	}
	if doc.VendorName != "Provincial Electricity Authority" {
		t.Fatalf("vendor not trimmed: %q", doc.VendorName)
	}
	want := time.Date(2026, 4, 1, 2, 30, 0, 0, time.UTC)
	if !doc.IssuedDate.Equal(want) {
		t.Fatalf("issued date not normalized to UTC: %v", doc.IssuedDate)
	}
}

func TestMapDocumentRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		doc  siamDocument
	}{
		{"missing id", siamDocument{Type: "expense", Amount: json.Number("1"), IssuedDate: "2026-04-01T00:00:00Z"}},
		{"unknown type", siamDocument{ID: "x", Type: "transfer", Amount: json.Number("1"), IssuedDate: "2026-04-01T00:00:00Z"}},
		{"bad date", siamDocument{ID: "x", Type: "income", Amount: json.Number("1"), IssuedDate: "yesterday"}},
		{"bad amount", siamDocument{ID: "x", Type: "income", Amount: json.Number("abc"), IssuedDate: "2026-04-01T00:00:00Z"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mapDocument("client-1", tc.doc); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

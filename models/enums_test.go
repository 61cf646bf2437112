package models

import "testing"

func TestEntryStatusTransitions(t *testing.T) {
	allowed := map[EntryStatus][]EntryStatus{
		EntryStatusPendingReview: {EntryStatusApproved, EntryStatusRejected},
		EntryStatusApproved:      {EntryStatusExported, EntryStatusRejected},
		EntryStatusRejected:      {},
		EntryStatusExported:      {},
	}
	all := []EntryStatus{EntryStatusPendingReview, EntryStatusApproved, EntryStatusRejected, EntryStatusExported}

	for from, nexts := range allowed {
		ok := make(map[EntryStatus]bool)
		for _, next := range nexts {
			ok[next] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != ok[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestDeriveDirection(t *testing.T) {
	if got := DeriveDirection(DocumentTypeExpense, EntryDirectionDebit); got != EntryDirectionDebit {
		t.Fatalf("expected debit, got %s", got)
	}
	if got := DeriveDirection(DocumentTypeIncome, EntryDirectionCredit); got != EntryDirectionCredit {
		t.Fatalf("expected credit, got %s", got)
	}
	// Missing nature falls back to the document type's natural side.
	if got := DeriveDirection(DocumentTypeExpense, ""); got != EntryDirectionDebit {
		t.Fatalf("expense default must debit, got %s", got)
	}
	if got := DeriveDirection(DocumentTypeIncome, ""); got != EntryDirectionCredit {
		t.Fatalf("income default must credit, got %s", got)
	}
}

func TestGenericAccountCode(t *testing.T) {
	if GenericAccountCode(DocumentTypeExpense) != "5000" {
		t.Fatal("expense generic bucket must be 5000")
	}
	if GenericAccountCode(DocumentTypeIncome) != "4000" {
		t.Fatal("income generic bucket must be 4000")
	}
}

func TestDefaultChartConsistency(t *testing.T) {
	seen := make(map[string]bool)
	for _, acc := range DefaultChart() {
		if seen[acc.Code] {
			t.Fatalf("duplicate chart code %s", acc.Code)
		}
		seen[acc.Code] = true

		if !acc.Type.IsValid() {
			t.Fatalf("account %s: invalid type %q", acc.Code, acc.Type)
		}
		wantNature := EntryDirectionDebit
		if acc.Type == DocumentTypeIncome {
			wantNature = EntryDirectionCredit
		}
		if acc.Nature != wantNature {
			t.Fatalf("account %s: nature %s does not match type %s", acc.Code, acc.Nature, acc.Type)
		}
	}
	if !seen[GenericAccountCode(DocumentTypeExpense)] || !seen[GenericAccountCode(DocumentTypeIncome)] {
		t.Fatal("generic buckets must be chart members")
	}
}

package models

import "testing"

func TestNewWatermarkStartsAtEpoch(t *testing.T) {
	wm := newWatermark("client-1")
	if wm.LastSyncedAt.IsZero() {
		t.Fatal("fresh cursor must not start at Go's zero time, it is outside MySQL's DATETIME range")
	}
	if wm.LastSyncedAt.Unix() != 0 {
		t.Fatalf("fresh cursor must start at the unix epoch, got %v", wm.LastSyncedAt)
	}
	if wm.LastSyncedExternalId != "" {
		t.Fatalf("fresh cursor must carry no external id, got %q", wm.LastSyncedExternalId)
	}
}

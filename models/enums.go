package models

// DocumentType is the provider-side kind of a financial document.
type DocumentType string

const (
	DocumentTypeExpense DocumentType = "expense"
	DocumentTypeIncome  DocumentType = "income"
)

func (e DocumentType) IsValid() bool {
	switch e {
	case DocumentTypeExpense, DocumentTypeIncome:
		return true
	}
	return false
}

func (e DocumentType) String() string {
	return string(e)
}

// ClassificationSource records which strategy produced a category decision.
type ClassificationSource string

const (
	ClassificationSourceRule     ClassificationSource = "rule"
	ClassificationSourceAI       ClassificationSource = "ai"
	ClassificationSourceFallback ClassificationSource = "fallback"
)

func (e ClassificationSource) IsValid() bool {
	switch e {
	case ClassificationSourceRule, ClassificationSourceAI, ClassificationSourceFallback:
		return true
	}
	return false
}

func (e ClassificationSource) String() string {
	return string(e)
}

// EntryDirection is the posting side of a journal entry.
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "debit"
	EntryDirectionCredit EntryDirection = "credit"
)

func (e EntryDirection) IsValid() bool {
	switch e {
	case EntryDirectionDebit, EntryDirectionCredit:
		return true
	}
	return false
}

func (e EntryDirection) String() string {
	return string(e)
}

// EntryStatus state machine:
// pending_review -> approved -> exported
// pending_review -> rejected
type EntryStatus string

const (
	EntryStatusPendingReview EntryStatus = "pending_review"
	EntryStatusApproved      EntryStatus = "approved"
	EntryStatusRejected      EntryStatus = "rejected"
	EntryStatusExported      EntryStatus = "exported"
)

func (e EntryStatus) IsValid() bool {
	switch e {
	case EntryStatusPendingReview, EntryStatusApproved, EntryStatusRejected, EntryStatusExported:
		return true
	}
	return false
}

func (e EntryStatus) String() string {
	return string(e)
}

// CanTransitionTo enforces the review state machine.
func (e EntryStatus) CanTransitionTo(next EntryStatus) bool {
	switch e {
	case EntryStatusPendingReview:
		return next == EntryStatusApproved || next == EntryStatusRejected
	case EntryStatusApproved:
		return next == EntryStatusExported || next == EntryStatusRejected
	default:
		return false
	}
}

const (
	ProviderSiamBooks = "siambooks"
)

const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusError        = "error"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual  = "manual"
	SyncTriggeredRetry   = "retry"
	SyncTriggeredWebhook = "webhook"
	SyncTriggeredSystem  = "system"
)

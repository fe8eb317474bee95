package domain

// LeaveOutcome is the terminal (or retryable) result of a leave request.
type LeaveOutcome string

const (
	LeaveRemoved            LeaveOutcome = "removed"
	LeavePaymentRequired    LeaveOutcome = "payment_required"
	LeaveNotParticipant     LeaveOutcome = "not_participant"
	LeaveIsCreator          LeaveOutcome = "is_creator"
	LeaveVerificationFailed LeaveOutcome = "verification_failed"
)

// LeaveRequest is an ephemeral request to exit a competition. TransactionID
// is an externally issued purchase receipt id, present when the caller has
// already completed the exit-fee payment flow.
type LeaveRequest struct {
	CompetitionID string `json:"competition_id"`
	UserID        string `json:"-"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// PaymentTerms describe the fee the caller must pay before retrying.
type PaymentTerms struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	ProductID string  `json:"product_id"`
}

// LeaveResult carries the outcome of a leave request. Payment is set only
// when Outcome is LeavePaymentRequired.
type LeaveResult struct {
	Outcome LeaveOutcome  `json:"outcome"`
	Payment *PaymentTerms `json:"payment,omitempty"`
}

package storage

import "time"

// Status is the lifecycle state of a redeem request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether a request in this status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// RedeemRequest is a single key-redemption request and its review state.
// Only Status ever changes after creation.
type RedeemRequest struct {
	ID               int64
	Name             string
	RedeemKey        string
	InviteLink       string
	ContactEmail     string
	Status           Status
	SubmittedAt      time.Time
	SubmitterAddress string // network origin, empty for command submissions
	SubmitterAgent   string // user agent, empty for command submissions
	OrderID          string // optional external correlation token
}

// UsedKey is an append-only ledger entry recording that a redeem key has
// been consumed. An entry outlives the request that burned the key.
type UsedKey struct {
	RedeemKey string
	UsedAt    time.Time
}

// Cooldown records the last accepted submission time for an identity
// (Discord user ID or network origin).
type Cooldown struct {
	Identity      string
	LastRequestAt time.Time
}

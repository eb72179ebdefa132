// Package transactions implements the loyalty-points transaction risk engine.
//
// Every submitted transaction is persisted, evaluated against an ordered
// chain of behavioral rules (high-value redemption, redemption velocity,
// account activity burst), and re-persisted with the computed verdict.
// Operators can later move a transaction between CLEARED, REVIEW and BLOCKED
// without re-running the rules.
package transactions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidStatus       = errors.New("invalid transaction status")
)

// RiskLevel is the ordinal severity classification of a transaction.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Status is the operational disposition of a transaction.
type Status string

const (
	StatusCleared Status = "CLEARED"
	StatusReview  Status = "REVIEW"
	StatusBlocked Status = "BLOCKED"
)

// ValidStatus reports whether s is one of the three dispositions.
func ValidStatus(s Status) bool {
	switch s {
	case StatusCleared, StatusReview, StatusBlocked:
		return true
	}
	return false
}

// Well-known transaction types. Type is free-form on the wire; only
// REDEMPTION carries scoring semantics (the velocity rule).
const (
	TypeEarn       = "EARN"
	TypeRedemption = "REDEMPTION"
)

// Transaction is a loyalty-points transaction with its risk annotations.
//
// PointsEarned and PointsRedeemed are pointers: absent is not zero. A
// missing PointsRedeemed means "not a redemption amount" and the high-value
// rule does not match. UserID is optional for anonymous/system postings.
type Transaction struct {
	ID             int64     `json:"id"`
	ExternalID     string    `json:"externalId,omitempty"`
	AccountID      string    `json:"accountId,omitempty"`
	UserID         *int64    `json:"userId,omitempty"`
	Type           string    `json:"type,omitempty"`
	PointsEarned   *int64    `json:"pointsEarned,omitempty"`
	PointsRedeemed *int64    `json:"pointsRedeemed,omitempty"`
	Date           string    `json:"date,omitempty"` // business date, YYYY-MM-DD
	Note           string    `json:"note,omitempty"`
	Description    string    `json:"description,omitempty"` // verdict text, set by the rule chain
	RiskLevel      RiskLevel `json:"riskLevel,omitempty"`
	Status         Status    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy (the pointer fields are duplicated).
func (t *Transaction) Clone() *Transaction {
	cp := *t
	if t.UserID != nil {
		v := *t.UserID
		cp.UserID = &v
	}
	if t.PointsEarned != nil {
		v := *t.PointsEarned
		cp.PointsEarned = &v
	}
	if t.PointsRedeemed != nil {
		v := *t.PointsRedeemed
		cp.PointsRedeemed = &v
	}
	return &cp
}

// Store persists transactions and serves the window queries the rule chain
// needs. Save assigns the identifier on first save and upserts afterwards.
// Any error other than ErrTransactionNotFound is a persistence failure and
// aborts the calling operation.
//
// All "Since" queries are half-open and right-unbounded: createdAt strictly
// after the bound. Callers capture "now" once per evaluation pass so a
// single scoring run is temporally consistent.
type Store interface {
	Save(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id int64) (*Transaction, error)

	// ListByAccountSince returns all transactions for the account with
	// createdAt > after, in no particular order.
	ListByAccountSince(ctx context.Context, accountID string, after time.Time) ([]*Transaction, error)

	// ListByUserAndTypeSince returns transactions for the user and type with
	// createdAt > after, most recent first.
	ListByUserAndTypeSince(ctx context.Context, userID int64, txType string, after time.Time) ([]*Transaction, error)

	// ListTopN returns the n most recent transactions system-wide,
	// descending by createdAt.
	ListTopN(ctx context.Context, n int) ([]*Transaction, error)

	// ListByUser returns up to limit transactions for the user, descending
	// by (createdAt, id). A zero before means "from the newest"; otherwise
	// only rows strictly older than (before, beforeID) are returned.
	ListByUser(ctx context.Context, userID int64, before time.Time, beforeID int64, limit int) ([]*Transaction, error)

	// ListAll returns every transaction. Used by the filtered listing
	// facade, which applies predicates in memory and caps the result.
	ListAll(ctx context.Context) ([]*Transaction, error)
}

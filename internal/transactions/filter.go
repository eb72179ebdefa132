package transactions

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/reward360/pointsguard/internal/pagination"
)

// MaxListResults caps every filtered listing and the CSV export.
const MaxListResults = 100

// Filter is the predicate set for the listing facade. Zero values mean
// "don't filter on this field". Min/MaxPoints apply to PointsRedeemed; rows
// without a redeemed amount never match a points bound.
type Filter struct {
	AccountID string
	RiskLevel RiskLevel
	Status    Status
	From      time.Time
	To        time.Time
	MinPoints *int64
	MaxPoints *int64
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.AccountID == "" && f.RiskLevel == "" && f.Status == "" &&
		f.From.IsZero() && f.To.IsZero() && f.MinPoints == nil && f.MaxPoints == nil
}

// Matches applies every set predicate to tx.
func (f Filter) Matches(tx *Transaction) bool {
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.RiskLevel != "" && tx.RiskLevel != f.RiskLevel {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && !tx.CreatedAt.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	if f.MinPoints != nil && (tx.PointsRedeemed == nil || *tx.PointsRedeemed < *f.MinPoints) {
		return false
	}
	if f.MaxPoints != nil && (tx.PointsRedeemed == nil || *tx.PointsRedeemed > *f.MaxPoints) {
		return false
	}
	return true
}

// List returns filtered transactions, newest first, capped at MaxListResults.
// With no filters set it takes the store's top-N fast path.
func (s *Service) List(ctx context.Context, f Filter) ([]*Transaction, error) {
	if f.IsZero() {
		return s.store.ListTopN(ctx, MaxListResults)
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*Transaction, 0, len(all))
	for _, tx := range all {
		if f.Matches(tx) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if len(result) > MaxListResults {
		result = result[:MaxListResults]
	}
	return result, nil
}

// UserHistory returns a cursor-paginated page of a user's transactions,
// newest first. This is the read-only pass-through other services use.
func (s *Service) UserHistory(ctx context.Context, userID int64, cursor string, limit int) ([]*Transaction, string, bool, error) {
	cur, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, err
	}

	var before time.Time
	var beforeID int64
	if cur != nil {
		before = cur.CreatedAt
		beforeID, err = strconv.ParseInt(cur.ID, 10, 64)
		if err != nil {
			return nil, "", false, pagination.ErrInvalidCursor
		}
	}

	// Fetch one extra row to decide has_more.
	items, err := s.store.ListByUser(ctx, userID, before, beforeID, limit+1)
	if err != nil {
		return nil, "", false, err
	}

	items, next, hasMore := pagination.ComputePage(items, limit, func(tx *Transaction) (time.Time, string) {
		return tx.CreatedAt, strconv.FormatInt(tx.ID, 10)
	})
	return items, next, hasMore, nil
}

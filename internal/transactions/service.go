package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/reward360/pointsguard/internal/logging"
	"github.com/reward360/pointsguard/internal/metrics"
	"github.com/reward360/pointsguard/internal/retry"
	"github.com/reward360/pointsguard/internal/traces"
)

// Verdict persistence is retried briefly; a transaction that fails every
// attempt stays persisted without a verdict and can be re-scored later.
const (
	verdictSaveAttempts = 3
	verdictSaveBaseWait = 100 * time.Millisecond
)

// EventEmitter receives scored transactions for live streaming.
type EventEmitter interface {
	TransactionScored(tx *Transaction)
}

// Service is the scoring orchestrator: persist, evaluate, amend.
type Service struct {
	store  Store
	rules  *RuleChain
	events EventEmitter
	now    func() time.Time
}

// NewService creates a scoring service over the given store with the default
// rule chain.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		rules: NewRuleChain(DefaultRules()...),
		now:   time.Now,
	}
}

// WithRules overrides the rule chain.
func (s *Service) WithRules(chain *RuleChain) *Service {
	s.rules = chain
	return s
}

// WithEvents attaches a live-feed emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Submit persists a new transaction, scores it, and commits the verdict.
//
// The shell record is saved before any window query runs so the rules never
// have to re-query for the row they are scoring: the current transaction is
// counted separately by the velocity rule. Two concurrent submissions for
// the same user can therefore each miss the other's uncommitted row and
// under-count a burst; that race is accepted, matching single-row-write
// atomicity (no cross-row locking).
func (s *Service) Submit(ctx context.Context, tx *Transaction) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "transactions.Submit",
		traces.AccountID(tx.AccountID),
		traces.TxType(tx.Type),
	)
	defer span.End()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}

	// Phase 1: establish the identifier.
	if err := s.store.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	// One "now" for the whole pass keeps every window query consistent.
	now := s.now()
	verdict, rule, err := s.rules.Evaluate(ctx, s.store, tx, now)
	if err != nil {
		// A scoring decision on an incomplete window query must never be
		// silently approved as CLEARED.
		return nil, fmt.Errorf("evaluate transaction %d: %w", tx.ID, err)
	}

	if verdict != nil {
		tx.RiskLevel = verdict.RiskLevel
		tx.Status = verdict.Status
		tx.Description = verdict.Description
		metrics.TransactionsFlaggedTotal.WithLabelValues(rule).Inc()
		logging.L(ctx).Warn("transaction flagged",
			"id", tx.ID,
			"rule", rule,
			"risk_level", string(tx.RiskLevel),
		)
	} else {
		if tx.RiskLevel == "" {
			tx.RiskLevel = RiskLow
		}
		if tx.Status == "" {
			tx.Status = StatusCleared
		}
	}
	tx.UpdatedAt = now

	// Phase 2: commit the verdict. The record already exists, so a failure
	// here leaves a verdict-less row rather than losing the transaction.
	err = retry.Do(ctx, verdictSaveAttempts, verdictSaveBaseWait, func() error {
		return s.store.Save(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("save verdict for transaction %d: %w", tx.ID, err)
	}

	metrics.TransactionsScoredTotal.WithLabelValues(string(tx.RiskLevel)).Inc()
	if s.events != nil {
		s.events.TransactionScored(tx)
	}

	return tx, nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, id int64) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// Transition sets a new status on an existing transaction and refreshes its
// update timestamp. The rule chain is not re-run and no state-machine guard
// applies: operators are trusted to set any status over any prior status.
func (s *Service) Transition(ctx context.Context, id int64, status Status) (*Transaction, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tx.Status = status
	tx.UpdatedAt = s.now()
	if err := s.store.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save status for transaction %d: %w", id, err)
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(status)).Inc()
	logging.L(ctx).Info("transaction status changed", "id", id, "status", string(status))
	return tx, nil
}

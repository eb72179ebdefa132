package transactions

import (
	"context"
	"fmt"
	"time"
)

// Rule thresholds and windows. Fixed by design, not configurable per call.
const (
	highValueThreshold = 10000

	velocityWindow        = 10 * time.Minute
	velocityCriticalCount = 10
	velocityMediumCount   = 5
	velocityLowCount      = 3

	activityWindow    = time.Hour
	activityThreshold = 20
)

// Verdict is the outcome a rule attaches to a transaction.
type Verdict struct {
	RiskLevel   RiskLevel
	Status      Status
	Description string
}

// Rule is a single behavioral check. Evaluate returns nil when the rule does
// not match; missing optional fields on the transaction degrade to "no
// match", never to an error. Window queries go through the store and their
// errors abort the whole scoring pass.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, store Store, tx *Transaction, now time.Time) (*Verdict, error)
}

// RuleChain evaluates rules in fixed priority order: the first matching rule
// wins and evaluation short-circuits. The chain order is also the severity
// order, so the winning verdict is the most severe one that applies.
type RuleChain struct {
	rules []Rule
}

// NewRuleChain creates a chain from the given rules, evaluated in order.
func NewRuleChain(rules ...Rule) *RuleChain {
	return &RuleChain{rules: rules}
}

// DefaultRules returns the built-in fraud rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		&HighValueRedemptionRule{},
		&RedemptionVelocityRule{},
		&AccountActivityRule{},
	}
}

// Evaluate runs the chain against tx using a single now for every window
// query. It returns the winning verdict and the name of the rule that
// produced it, or (nil, "") when no rule matched.
func (c *RuleChain) Evaluate(ctx context.Context, store Store, tx *Transaction, now time.Time) (*Verdict, string, error) {
	for _, r := range c.rules {
		v, err := r.Evaluate(ctx, store, tx, now)
		if err != nil {
			return nil, "", fmt.Errorf("rule %s: %w", r.Name(), err)
		}
		if v != nil {
			return v, r.Name(), nil
		}
	}
	return nil, "", nil
}

// ---------------------------------------------------------------------------
// HighValueRedemptionRule: single redemption above the high-value threshold
// ---------------------------------------------------------------------------

type HighValueRedemptionRule struct{}

func (r *HighValueRedemptionRule) Name() string { return "high_value_redemption" }

func (r *HighValueRedemptionRule) Evaluate(_ context.Context, _ Store, tx *Transaction, _ time.Time) (*Verdict, error) {
	if tx.PointsRedeemed == nil || *tx.PointsRedeemed <= highValueThreshold {
		return nil, nil
	}
	return &Verdict{
		RiskLevel:   RiskHigh,
		Status:      StatusReview,
		Description: "Flagged: High value redemption (>10000 points)",
	}, nil
}

// ---------------------------------------------------------------------------
// RedemptionVelocityRule: redemption burst per user in a 10-minute window
// ---------------------------------------------------------------------------

type RedemptionVelocityRule struct{}

func (r *RedemptionVelocityRule) Name() string { return "redemption_velocity" }

func (r *RedemptionVelocityRule) Evaluate(ctx context.Context, store Store, tx *Transaction, now time.Time) (*Verdict, error) {
	if tx.Type != TypeRedemption || tx.UserID == nil {
		return nil, nil
	}

	recent, err := store.ListByUserAndTypeSince(ctx, *tx.UserID, TypeRedemption, now.Add(-velocityWindow))
	if err != nil {
		return nil, err
	}

	// The current transaction counts as one of its own cohort, exactly once.
	// Its pre-saved row may already be visible in the window query, so count
	// peers by id rather than trusting the raw result length.
	count := 1
	for _, r := range recent {
		if r.ID != tx.ID {
			count++
		}
	}

	switch {
	case count >= velocityCriticalCount:
		return &Verdict{
			RiskLevel:   RiskCritical,
			Status:      StatusReview,
			Description: "Flagged: Excessive redemptions (10+ in 10 min)",
		}, nil
	case count >= velocityMediumCount:
		return &Verdict{
			RiskLevel:   RiskMedium,
			Status:      StatusReview,
			Description: "Flagged: Multiple redemptions (5-9 in 10 min)",
		}, nil
	case count >= velocityLowCount:
		return &Verdict{
			RiskLevel:   RiskLow,
			Status:      StatusReview,
			Description: "Flagged: Multiple redemptions (3-4 in 10 min)",
		}, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// AccountActivityRule: unusual total account activity in a 1-hour window
// ---------------------------------------------------------------------------

type AccountActivityRule struct{}

func (r *AccountActivityRule) Name() string { return "account_activity" }

func (r *AccountActivityRule) Evaluate(ctx context.Context, store Store, tx *Transaction, now time.Time) (*Verdict, error) {
	if tx.AccountID == "" {
		return nil, nil
	}

	recent, err := store.ListByAccountSince(ctx, tx.AccountID, now.Add(-activityWindow))
	if err != nil {
		return nil, err
	}

	if len(recent) > activityThreshold {
		return &Verdict{
			RiskLevel:   RiskMedium,
			Status:      StatusReview,
			Description: "Flagged: Unusual account activity (>20 transactions in 1 hour)",
		}, nil
	}
	return nil, nil
}

//go:build integration

package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reward360/pointsguard/internal/testutil"
)

// Postgres rounds timestamps to microseconds, so tests seed with truncated
// times to keep equality assertions honest.
func pgNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestPostgresStore_SaveAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	now := pgNow()
	tx := &Transaction{
		ExternalID:     "tx-1",
		AccountID:      "acct-1",
		UserID:         int64p(7),
		Type:           TypeRedemption,
		PointsRedeemed: int64p(500),
		Date:           "2025-06-01",
		Note:           "welcome bonus burn",
		RiskLevel:      RiskLow,
		Status:         StatusCleared,
		CreatedAt:      now,
	}
	require.NoError(t, store.Save(ctx, tx))
	require.NotZero(t, tx.ID, "insert assigns an id")

	got, err := store.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.ExternalID)
	assert.Equal(t, "acct-1", got.AccountID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(7), *got.UserID)
	require.NotNil(t, got.PointsRedeemed)
	assert.Equal(t, int64(500), *got.PointsRedeemed)
	assert.Nil(t, got.PointsEarned)
	assert.Equal(t, "2025-06-01", got.Date)
	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.Equal(t, StatusCleared, got.Status)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.UpdatedAt.IsZero())
}

func TestPostgresStore_SaveUpdatesExistingRow(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	tx := &Transaction{AccountID: "acct-1", RiskLevel: RiskLow, Status: StatusCleared, CreatedAt: pgNow()}
	require.NoError(t, store.Save(ctx, tx))
	id := tx.ID

	tx.RiskLevel = RiskHigh
	tx.Status = StatusReview
	tx.Description = "Flagged: High value redemption (>10000 points)"
	tx.UpdatedAt = pgNow()
	require.NoError(t, store.Save(ctx, tx))
	assert.Equal(t, id, tx.ID, "update keeps the id")

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, got.RiskLevel)
	assert.Equal(t, StatusReview, got.Status)
	assert.Equal(t, "Flagged: High value redemption (>10000 points)", got.Description)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestPostgresStore_UpdateMissingRow(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)

	err := store.Save(context.Background(), &Transaction{ID: 999999, CreatedAt: pgNow()})
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)

	_, err := store.Get(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPostgresStore_WindowsAreStrictlyAfter(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	bound := pgNow().Add(-10 * time.Minute)
	onBoundary := &Transaction{
		AccountID: "acct-1", UserID: int64p(7), Type: TypeRedemption, CreatedAt: bound,
	}
	justInside := &Transaction{
		AccountID: "acct-1", UserID: int64p(7), Type: TypeRedemption, CreatedAt: bound.Add(time.Microsecond),
	}
	require.NoError(t, store.Save(ctx, onBoundary))
	require.NoError(t, store.Save(ctx, justInside))

	byAccount, err := store.ListByAccountSince(ctx, "acct-1", bound)
	require.NoError(t, err)
	require.Len(t, byAccount, 1, "row exactly at the bound is excluded")
	assert.Equal(t, justInside.ID, byAccount[0].ID)

	byUser, err := store.ListByUserAndTypeSince(ctx, 7, TypeRedemption, bound)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, justInside.ID, byUser[0].ID)
}

func TestPostgresStore_ListByUserAndTypeFilters(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	now := pgNow()
	require.NoError(t, store.Save(ctx, &Transaction{UserID: int64p(1), Type: TypeRedemption, CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &Transaction{UserID: int64p(1), Type: "EARN", CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &Transaction{UserID: int64p(2), Type: TypeRedemption, CreatedAt: now}))
	require.NoError(t, store.Save(ctx, &Transaction{Type: TypeRedemption, CreatedAt: now})) // no user

	got, err := store.ListByUserAndTypeSince(ctx, 1, TypeRedemption, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].UserID)
	assert.Equal(t, int64(1), *got[0].UserID)
}

func TestPostgresStore_ListTopN(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	base := pgNow().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, &Transaction{
			AccountID: "acct-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.ListTopN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, !got[i].CreatedAt.After(got[i-1].CreatedAt), "newest first")
	}
}

func TestPostgresStore_ListByUserKeyset(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	base := pgNow().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, &Transaction{
			UserID:    int64p(7),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	// Same-timestamp rows exercise the id tie-break.
	tie := base.Add(10 * time.Second)
	require.NoError(t, store.Save(ctx, &Transaction{UserID: int64p(7), CreatedAt: tie}))
	require.NoError(t, store.Save(ctx, &Transaction{UserID: int64p(7), CreatedAt: tie}))

	seen := map[int64]bool{}
	var before time.Time
	var beforeID int64
	total := 0
	for {
		page, err := store.ListByUser(ctx, 7, before, beforeID, 3)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, tx := range page {
			assert.False(t, seen[tx.ID], "pages must not overlap")
			seen[tx.ID] = true
		}
		total += len(page)
		last := page[len(page)-1]
		before, beforeID = last.CreatedAt, last.ID
	}
	assert.Equal(t, 7, total)
}

package transactions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory transaction store for dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]*Transaction
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*Transaction)}
}

func (m *MemoryStore) Save(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == 0 {
		m.nextID++
		tx.ID = m.nextID
	} else if tx.ID > m.nextID {
		m.nextID = tx.ID
	}
	m.byID[tx.ID] = tx.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.byID[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (m *MemoryStore) ListByAccountSince(_ context.Context, accountID string, after time.Time) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.byID {
		if tx.AccountID == accountID && tx.CreatedAt.After(after) {
			result = append(result, tx.Clone())
		}
	}
	return result, nil
}

func (m *MemoryStore) ListByUserAndTypeSince(_ context.Context, userID int64, txType string, after time.Time) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.byID {
		if tx.UserID != nil && *tx.UserID == userID && tx.Type == txType && tx.CreatedAt.After(after) {
			result = append(result, tx.Clone())
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MemoryStore) ListTopN(_ context.Context, n int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Transaction, 0, len(m.byID))
	for _, tx := range m.byID {
		result = append(result, tx.Clone())
	}
	sortNewestFirst(result)
	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID int64, before time.Time, beforeID int64, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.byID {
		if tx.UserID == nil || *tx.UserID != userID {
			continue
		}
		if !before.IsZero() {
			// Keyset position: strictly older than (before, beforeID).
			if tx.CreatedAt.After(before) || tx.CreatedAt.Equal(before) && tx.ID >= beforeID {
				continue
			}
		}
		result = append(result, tx.Clone())
	}
	sortNewestFirst(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Transaction, 0, len(m.byID))
	for _, tx := range m.byID {
		result = append(result, tx.Clone())
	}
	return result, nil
}

// sortNewestFirst orders by createdAt descending, id descending as tie-break.
func sortNewestFirst(txs []*Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}

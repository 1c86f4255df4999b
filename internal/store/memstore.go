package store

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// MemStore is a thread-safe in-memory implementation of ProjectStore,
// UserStore and TransactionLedger. Projects and users are seeded at boot and
// never mutated; the transaction ledger is written by the gateway and
// optionally mirrored to disk in the background.
type MemStore struct {
	mu           sync.RWMutex
	projects     map[string]schema.Project
	users        map[string]schema.User
	transactions map[string]schema.Transaction
	persister    *Persistence
	wg           sync.WaitGroup
}

// NewMemStore initializes a store from previously persisted transactions (may
// be nil) and an optional persister for background ledger writes.
func NewMemStore(initial map[string]schema.Transaction, p *Persistence) *MemStore {
	if initial == nil {
		initial = make(map[string]schema.Transaction)
	}
	return &MemStore{
		projects:     make(map[string]schema.Project),
		users:        make(map[string]schema.User),
		transactions: initial,
		persister:    p,
	}
}

// Wait blocks until all background persistence tasks have completed.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// SeedProject registers a project record. Intended for boot-time seeding and
// tests; the account service owns these records in production.
func (m *MemStore) SeedProject(p schema.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

// SeedUser registers a user record.
func (m *MemStore) SeedUser(u schema.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemStore) ProjectByKey(rawKey string) (schema.Project, schema.KeyKind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.projects {
		if p.LivePublicKey == rawKey {
			return p, schema.KeyLive, nil
		}
		if p.TestPublicKey == rawKey {
			return p, schema.KeyTest, nil
		}
	}
	return schema.Project{}, "", ErrProjectNotFound
}

func (m *MemStore) UserByID(id string) (schema.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return schema.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemStore) SaveTransaction(tx schema.Transaction) error {
	m.mu.Lock()
	m.transactions[tx.ID] = tx
	snapshot := m.copyTransactions()
	m.mu.Unlock()

	m.persist(snapshot)
	return nil
}

func (m *MemStore) Transaction(id string) (schema.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return schema.Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (m *MemStore) UpdateStatus(id string, status schema.TxStatus) (schema.Transaction, error) {
	m.mu.Lock()
	tx, ok := m.transactions[id]
	if !ok {
		m.mu.Unlock()
		return schema.Transaction{}, ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	m.transactions[id] = tx
	snapshot := m.copyTransactions()
	m.mu.Unlock()

	m.persist(snapshot)
	return tx, nil
}

// Transactions returns a copy of every ledger entry, for diagnostics.
func (m *MemStore) Transactions() []schema.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Values(m.transactions)
}

// copyTransactions deep-copies the ledger so it can be saved safely in the
// background. It MUST be called while holding m.mu.
func (m *MemStore) copyTransactions() map[string]schema.Transaction {
	snapshot := make(map[string]schema.Transaction, len(m.transactions))
	for id, tx := range m.transactions {
		snapshot[id] = tx
	}
	return snapshot
}

func (m *MemStore) persist(snapshot map[string]schema.Transaction) {
	if m.persister == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persister.SaveLedger(snapshot)
	}()
}

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

func seededStore() *MemStore {
	m := NewMemStore(nil, nil)
	m.SeedUser(schema.User{ID: "u1", Email: "owner@example.com", Status: schema.UserActive})
	m.SeedProject(schema.Project{
		ID:            "p1",
		UserID:        "u1",
		Name:          "Shop",
		LivePublicKey: "pk_live_1",
		TestPublicKey: "pk_test_1",
	})
	return m
}

func TestProjectByKey_MatchesLiveThenTest(t *testing.T) {
	m := seededStore()

	p, kind, err := m.ProjectByKey("pk_live_1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, schema.KeyLive, kind)

	p, kind, err = m.ProjectByKey("pk_test_1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, schema.KeyTest, kind)
}

func TestProjectByKey_UnknownKey(t *testing.T) {
	m := seededStore()

	_, _, err := m.ProjectByKey("pk_live_nope")
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestLedger_SaveAndUpdate(t *testing.T) {
	m := seededStore()

	tx := schema.Transaction{ID: "tx1", ProjectID: "p1", Phone: "254700000000", Amount: 100, Status: schema.TxPending}
	require.NoError(t, m.SaveTransaction(tx))

	got, err := m.Transaction("tx1")
	require.NoError(t, err)
	require.Equal(t, schema.TxPending, got.Status)

	updated, err := m.UpdateStatus("tx1", schema.TxSuccess)
	require.NoError(t, err)
	require.Equal(t, schema.TxSuccess, updated.Status)

	_, err = m.UpdateStatus("missing", schema.TxFailed)
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestLedger_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	persister, err := NewPersistence(dir)
	require.NoError(t, err)

	m := NewMemStore(nil, persister)
	require.NoError(t, m.SaveTransaction(schema.Transaction{
		ID:        "tx1",
		ProjectID: "p1",
		Phone:     "254700000000",
		Amount:    250,
		Status:    schema.TxPending,
		CreatedAt: time.Now().UTC(),
	}))
	m.Wait()

	reloaded, err := persister.LoadLedger()
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	require.Equal(t, "p1", reloaded["tx1"].ProjectID)

	// A fresh store boots from the persisted ledger.
	m2 := NewMemStore(reloaded, persister)
	got, err := m2.Transaction("tx1")
	require.NoError(t, err)
	require.Equal(t, schema.TxPending, got.Status)
}

func TestLoadLedger_EmptyDir(t *testing.T) {
	persister, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	ledger, err := persister.LoadLedger()
	require.NoError(t, err)
	require.Empty(t, ledger)
}

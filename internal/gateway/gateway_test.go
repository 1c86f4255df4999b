package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pesabridge/pesabridge/internal/auth"
	"github.com/pesabridge/pesabridge/internal/provider"
	"github.com/pesabridge/pesabridge/internal/store"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

func testGateway(t *testing.T) (*Gateway, *store.MemStore) {
	t.Helper()
	m := store.NewMemStore(nil, nil)
	return New(provider.NewStub(), m, slog.Default()), m
}

func authCtx(projectID string, kind schema.KeyKind) *auth.Context {
	return &auth.Context{
		Project: schema.Project{ID: projectID, UserID: "u-" + projectID},
		User:    schema.User{ID: "u-" + projectID, Status: schema.UserActive},
		Kind:    kind,
	}
}

func TestInitiate_RecordsOwnership(t *testing.T) {
	gw, ledger := testGateway(t)

	result, err := gw.Initiate(context.Background(), authCtx("p1", schema.KeyLive), InitiateRequest{
		Phone:  "254700000000",
		Amount: 100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.TransactionID)
	require.Equal(t, schema.TxPending, result.Status)

	tx, err := ledger.Transaction(result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, "p1", tx.ProjectID)
	require.Equal(t, schema.KeyLive, tx.KeyKind)
}

func TestInitiate_ProviderRejectionSurfacesMessage(t *testing.T) {
	gw, _ := testGateway(t)

	_, err := gw.Initiate(context.Background(), authCtx("p1", schema.KeyLive), InitiateRequest{
		Phone:  "not-a-phone",
		Amount: 100,
	})
	var rejection *provider.RejectionError
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, "Invalid phone number format", rejection.Message)
}

func TestStatus_OwnProjectReadsThrough(t *testing.T) {
	gw, _ := testGateway(t)
	ctx := authCtx("p1", schema.KeyLive)

	result, err := gw.Initiate(context.Background(), ctx, InitiateRequest{Phone: "254700000000", Amount: 50})
	require.NoError(t, err)

	payload, err := gw.Status(context.Background(), ctx, result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, string(schema.TxPending), payload["status"])
}

// sandboxRecorder captures the sandbox flag of the last status query.
type sandboxRecorder struct {
	*provider.Stub
	lastQuerySandbox bool
}

func (r *sandboxRecorder) QueryStatus(ctx context.Context, transactionID string, sandbox bool) (map[string]any, error) {
	r.lastQuerySandbox = sandbox
	return r.Stub.QueryStatus(ctx, transactionID, sandbox)
}

func TestStatus_FollowsKeyKindToSandbox(t *testing.T) {
	rec := &sandboxRecorder{Stub: provider.NewStub()}
	m := store.NewMemStore(nil, nil)
	gw := New(rec, m, slog.Default())

	testCtx := authCtx("p1", schema.KeyTest)
	result, err := gw.Initiate(context.Background(), testCtx, InitiateRequest{Phone: "254700000000", Amount: 25})
	require.NoError(t, err)

	_, err = gw.Status(context.Background(), testCtx, result.TransactionID)
	require.NoError(t, err)
	require.True(t, rec.lastQuerySandbox, "test-key transaction must be queried against the sandbox")

	liveCtx := authCtx("p2", schema.KeyLive)
	result, err = gw.Initiate(context.Background(), liveCtx, InitiateRequest{Phone: "254700000000", Amount: 25})
	require.NoError(t, err)

	_, err = gw.Status(context.Background(), liveCtx, result.TransactionID)
	require.NoError(t, err)
	require.False(t, rec.lastQuerySandbox)
}

func TestStatus_ForeignTransactionRejected(t *testing.T) {
	gw, _ := testGateway(t)

	result, err := gw.Initiate(context.Background(), authCtx("p1", schema.KeyLive), InitiateRequest{Phone: "254700000000", Amount: 50})
	require.NoError(t, err)

	// Another tenant polls the first tenant's transaction.
	_, err = gw.Status(context.Background(), authCtx("p2", schema.KeyLive), result.TransactionID)
	require.ErrorIs(t, err, ErrForeignTransaction)
}

func TestStatus_UnknownTransactionLooksForeign(t *testing.T) {
	gw, _ := testGateway(t)

	_, err := gw.Status(context.Background(), authCtx("p1", schema.KeyLive), "no-such-tx")
	require.ErrorIs(t, err, ErrForeignTransaction)
}

func TestOwns(t *testing.T) {
	gw, _ := testGateway(t)

	result, err := gw.Initiate(context.Background(), authCtx("p1", schema.KeyTest), InitiateRequest{Phone: "254711111111", Amount: 10})
	require.NoError(t, err)

	owns, err := gw.Owns("p1", result.TransactionID)
	require.NoError(t, err)
	require.True(t, owns)

	owns, err = gw.Owns("p2", result.TransactionID)
	require.NoError(t, err)
	require.False(t, owns)

	owns, err = gw.Owns("p1", "no-such-tx")
	require.NoError(t, err)
	require.False(t, owns)
}

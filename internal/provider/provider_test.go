package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

func TestStub_PushLifecycle(t *testing.T) {
	s := NewStub()

	resp, err := s.InitiateSTKPush(context.Background(), PushRequest{
		TransactionID: "tx1",
		Phone:         "254700000000",
		Amount:        100,
	})
	require.NoError(t, err)
	require.Equal(t, schema.TxPending, resp.Status)
	require.NotEmpty(t, resp.ProviderRef)

	payload, err := s.QueryStatus(context.Background(), "tx1", false)
	require.NoError(t, err)
	require.Equal(t, string(schema.TxPending), payload["status"])

	s.SetStatus("tx1", schema.TxSuccess)
	payload, err = s.QueryStatus(context.Background(), "tx1", false)
	require.NoError(t, err)
	require.Equal(t, string(schema.TxSuccess), payload["status"])
}

func TestStub_RejectsMalformedRequests(t *testing.T) {
	s := NewStub()

	var rejection *RejectionError

	_, err := s.InitiateSTKPush(context.Background(), PushRequest{TransactionID: "tx", Phone: "0700", Amount: 10})
	require.ErrorAs(t, err, &rejection)

	_, err = s.InitiateSTKPush(context.Background(), PushRequest{TransactionID: "tx", Phone: "254700000000", Amount: 0})
	require.ErrorAs(t, err, &rejection)

	_, err = s.QueryStatus(context.Background(), "never-pushed", false)
	require.ErrorAs(t, err, &rejection)
}

func TestHTTPClient_PassesRejectionThroughVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"The initiator information is invalid."}`))
	}))
	defer upstream.Close()

	c := NewHTTPClient(upstream.URL, "", "provider-key")
	_, err := c.InitiateSTKPush(context.Background(), PushRequest{
		TransactionID: "tx1",
		Phone:         "254700000000",
		Amount:        100,
	})

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, "The initiator information is invalid.", rejection.Message)
}

func TestHTTPClient_AcceptedPush(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stkpush", r.URL.Path)
		require.Equal(t, "Bearer provider-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"PENDING","message":"sent","provider_ref":"ref-1"}`))
	}))
	defer upstream.Close()

	c := NewHTTPClient(upstream.URL, "", "provider-key")
	resp, err := c.InitiateSTKPush(context.Background(), PushRequest{
		TransactionID: "tx1",
		Phone:         "254700000000",
		Amount:        100,
	})
	require.NoError(t, err)
	require.Equal(t, schema.TxPending, resp.Status)
	require.Equal(t, "ref-1", resp.ProviderRef)
}

func TestHTTPClient_TransportFailureIsRetryable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", "provider-key")

	_, err := c.InitiateSTKPush(context.Background(), PushRequest{
		TransactionID: "tx1",
		Phone:         "254700000000",
		Amount:        100,
	})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClient_SandboxRouting(t *testing.T) {
	var hits []string
	mk := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, name)
			_, _ = w.Write([]byte(`{"status":"PENDING"}`))
		}))
	}
	live := mk("live")
	defer live.Close()
	sandbox := mk("sandbox")
	defer sandbox.Close()

	c := NewHTTPClient(live.URL, sandbox.URL, "provider-key")

	_, err := c.InitiateSTKPush(context.Background(), PushRequest{TransactionID: "a", Phone: "254700000000", Amount: 1, Sandbox: true})
	require.NoError(t, err)
	_, err = c.InitiateSTKPush(context.Background(), PushRequest{TransactionID: "b", Phone: "254700000000", Amount: 1})
	require.NoError(t, err)

	// Status queries follow the same routing as the push that created the
	// transaction.
	_, err = c.QueryStatus(context.Background(), "a", true)
	require.NoError(t, err)
	_, err = c.QueryStatus(context.Background(), "b", false)
	require.NoError(t, err)

	require.Equal(t, []string{"sandbox", "live", "sandbox", "live"}, hits)
}

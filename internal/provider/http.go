package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// HTTPClient speaks JSON-over-HTTP to a Daraja-style STK-push API.
type HTTPClient struct {
	BaseURL    string
	SandboxURL string
	APIKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a provider client. sandboxURL may be empty, in which
// case sandbox requests go to baseURL.
func NewHTTPClient(baseURL, sandboxURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		SandboxURL: sandboxURL,
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type pushPayload struct {
	TransactionID    string  `json:"transaction_id"`
	PhoneNumber      string  `json:"phone_number"`
	Amount           float64 `json:"amount"`
	AccountReference string  `json:"account_reference,omitempty"`
}

type pushReply struct {
	Status       string         `json:"status"`
	Message      string         `json:"message"`
	ProviderRef  string         `json:"provider_ref"`
	ProviderData map[string]any `json:"provider_data"`
	Error        string         `json:"error"`
}

func (c *HTTPClient) InitiateSTKPush(ctx context.Context, req PushRequest) (PushResponse, error) {
	body, err := json.Marshal(pushPayload{
		TransactionID:    req.TransactionID,
		PhoneNumber:      req.Phone,
		Amount:           req.Amount,
		AccountReference: req.Reference,
	})
	if err != nil {
		return PushResponse{}, err
	}

	url := c.baseFor(req.Sandbox) + "/stkpush"
	reply, status, err := c.post(ctx, url, body)
	if err != nil {
		return PushResponse{}, err
	}

	if status >= 400 {
		msg := reply.Error
		if msg == "" {
			msg = reply.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("provider rejected request (HTTP %d)", status)
		}
		return PushResponse{}, &RejectionError{Message: msg}
	}

	txStatus := schema.TxStatus(reply.Status)
	if txStatus == "" {
		txStatus = schema.TxInitiated
	}
	return PushResponse{
		Status:       txStatus,
		Message:      reply.Message,
		ProviderRef:  reply.ProviderRef,
		ProviderData: reply.ProviderData,
	}, nil
}

func (c *HTTPClient) QueryStatus(ctx context.Context, transactionID string, sandbox bool) (map[string]any, error) {
	url := c.baseFor(sandbox) + "/transactions/" + transactionID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed provider response", ErrUnavailable)
	}

	if resp.StatusCode >= 400 {
		msg, _ := payload["error"].(string)
		if msg == "" {
			msg = fmt.Sprintf("provider rejected status query (HTTP %d)", resp.StatusCode)
		}
		return nil, &RejectionError{Message: msg}
	}
	return payload, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, body []byte) (pushReply, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return pushReply{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pushReply{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var reply pushReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil && err != io.EOF {
		return pushReply{}, 0, fmt.Errorf("%w: malformed provider response", ErrUnavailable)
	}
	return reply, resp.StatusCode, nil
}

func (c *HTTPClient) baseFor(sandbox bool) string {
	if sandbox && c.SandboxURL != "" {
		return c.SandboxURL
	}
	return c.BaseURL
}

// Package sdk provides the client-side library for the PesaBridge gateway:
// payment initiation and status reads over HTTP, and transaction status
// updates over the realtime websocket channel.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

var validate = validator.New()

// Client talks to one PesaBridge deployment with one API key.
// It implements the Bridge interface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu       sync.Mutex // Protects the realtime connection state below
	conn     *websocket.Conn
	cancel   context.CancelFunc
	handlers map[string][]func(schema.StatusEvent)
	closed   bool
}

// Connect builds a client for the gateway at baseURL (e.g.
// "http://localhost:7002") authenticated with apiKey. The realtime channel is
// dialed lazily on the first SubscribeToUpdates.
func Connect(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("base URL and API key are required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		handlers: make(map[string][]func(schema.StatusEvent)),
	}, nil
}

// Pay initiates an STK push and returns the normalized gateway response.
func (c *Client) Pay(req PaymentRequest) (PaymentResponse, error) {
	if err := validate.Struct(req); err != nil {
		return PaymentResponse{}, fmt.Errorf("invalid payment request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return PaymentResponse{}, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/transactions/initiate", bytes.NewReader(body))
	if err != nil {
		return PaymentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	var resp PaymentResponse
	if err := c.do(httpReq, &resp); err != nil {
		return PaymentResponse{}, err
	}
	return resp, nil
}

// GetStatus polls the provider-shaped status payload for a transaction the
// client's project owns.
func (c *Client) GetStatus(transactionID string) (map[string]any, error) {
	httpReq, err := http.NewRequest(http.MethodGet, c.baseURL+"/transactions/status/"+transactionID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	var payload map[string]any
	if err := c.do(httpReq, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// do executes the request and decodes either the success payload or the
// gateway's {"error": msg} failure shape.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

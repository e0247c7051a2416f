// Package sui is a JSON-RPC client for Sui fullnodes.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// FullnodeURL returns the public fullnode endpoint of a network.
func FullnodeURL(network string) (string, error) {
	switch network {
	case "mainnet":
		return "https://fullnode.mainnet.sui.io:443", nil
	case "testnet":
		return "https://fullnode.testnet.sui.io:443", nil
	case "devnet":
		return "https://fullnode.devnet.sui.io:443", nil
	}
	return "", fmt.Errorf("unknown sui network %q", network)
}

// Client is a Sui JSON-RPC client with retry on 429.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	nextID     atomic.Int64
}

// NewClient creates a new Sui RPC client.
func NewClient(url string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// post sends a request body with retry on 429.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", c.url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.url, string(body))
	}

	return nil, lastErr
}

// call invokes an RPC method and unmarshals its result.
func (c *Client) call(ctx context.Context, method string, dest any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	return nil
}

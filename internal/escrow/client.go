package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of a release or forfeit call against the escrow
// service.
type Result struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
}

// Client is the narrow interface the lifecycle hooks use to move staked
// funds. Implementations must be safe for concurrent use.
type Client interface {
	Release(ctx context.Context, eventID, ticketID, wallet string) (Result, error)
	Forfeit(ctx context.Context, eventID, ticketID, wallet string) (Result, error)
}

const defaultRequestTimeout = 10 * time.Second

// HTTPClient talks JSON to the escrow service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the escrow service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *HTTPClient) Release(ctx context.Context, eventID, ticketID, wallet string) (Result, error) {
	return c.post(ctx, "/escrow/release", eventID, ticketID, wallet)
}

func (c *HTTPClient) Forfeit(ctx context.Context, eventID, ticketID, wallet string) (Result, error) {
	return c.post(ctx, "/escrow/forfeit", eventID, ticketID, wallet)
}

type escrowRequest struct {
	EventID  string `json:"event_id"`
	TicketID string `json:"ticket_id"`
	Wallet   string `json:"wallet"`
}

func (c *HTTPClient) post(ctx context.Context, path, eventID, ticketID, wallet string) (Result, error) {
	body, err := json.Marshal(escrowRequest{
		EventID:  eventID,
		TicketID: ticketID,
		Wallet:   wallet,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode escrow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build escrow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("escrow %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("escrow %s: unexpected status %d", path, resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode escrow response: %w", err)
	}
	return res, nil
}

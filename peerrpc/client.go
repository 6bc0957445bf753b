package peerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skirmishlabs/vault/domain"
)

// Client is the outbound half of the Peer Transport, satisfying
// txnengine.Transport. PREPARE and STATUS are single-shot: the caller's
// context deadline is the only timeout, and the Transaction Engine treats
// any failure as an abort-worthy "peer unreachable" (spec.md §4.3.1 step 3).
// DECIDE retries internally with backoff, since a coordinator's DECIDE
// "retries indefinitely until acknowledged" (spec.md §4.3.1 step 5).
type Client struct {
	httpClient *http.Client
	selfID     string
}

// NewClient builds a Client that identifies itself as selfID on every
// outbound call via the X-Peer-Id header.
func NewClient(selfID string) *Client {
	return &Client{
		httpClient: &http.Client{},
		selfID:     selfID,
	}
}

func (c *Client) Prepare(ctx context.Context, peerAddr string, req domain.PrepareRequest) (domain.PrepareResponse, error) {
	var resp domain.PrepareResponse
	err := c.post(ctx, peerAddr+"/prepare", req, &resp)
	return resp, err
}

func (c *Client) Status(ctx context.Context, peerAddr string, req domain.StatusRequest) (domain.StatusResponse, error) {
	var resp domain.StatusResponse
	err := c.post(ctx, peerAddr+"/status", req, &resp)
	return resp, err
}

// Decide retries the send with exponential backoff until ctx is done,
// matching the coordinator's "unbounded background retries" (spec.md
// §4.3.1 step 5). The caller supplies ctx's deadline; the engine's
// sendDecideWithRetry sets it to four times T_decide for the whole call,
// and deliverDecision itself
// runs in a background goroutine so giving up here only defers the
// transaction to the recovery sweeper, it never blocks a client response.
func (c *Client) Decide(ctx context.Context, peerAddr string, req domain.DecideRequest) (domain.DecideResponse, error) {
	var resp domain.DecideResponse
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(func() error {
		return c.post(ctx, peerAddr+"/decide", req, &resp)
	}, policy)
	return resp, err
}

func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerPeerID, c.selfID)
	req.Header.Set(headerSequence, time.Now().UTC().Format(time.RFC3339Nano))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/webdc/firstblood/internal/models"
)

// Client talks to the record service's claim endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a claim client. timeout bounds each request so a hung
// call stalls at most one tick.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ClaimNew fetches all not-yet-sent records and atomically marks them sent
// on the server side.
func (c *Client) ClaimNew(ctx context.Context) ([]models.FirstBlood, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/firstbloods/all/?update_was_sent=true", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("claim request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var recs []models.FirstBlood
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("claim response: %w", err)
	}
	return recs, nil
}

package topics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client triggers the external clustering job for one user. The job is
// asynchronous: completion is observed only through group rows appearing in
// the store, never through this call's return value.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TriggerClustering fires the one-shot clustering request for the user.
func (c *Client) TriggerClustering(ctx context.Context, userEmail string) error {
	endpoint := c.baseURL + "?user_email=" + url.QueryEscape(userEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("topic server returned %d", resp.StatusCode)
	}
	return nil
}

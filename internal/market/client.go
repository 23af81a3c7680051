// Package market fetches the demand/market snapshot: competitor prices,
// demand index, seasonal factor, capacity utilization. Missing competitor
// data is a degraded mode for pricing, never an error here.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relocore/dispatch/internal/model"
)

type Client interface {
	Snapshot(ctx context.Context, serviceType string) (*model.MarketSnapshot, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Snapshot(ctx context.Context, serviceType string) (*model.MarketSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/snapshot?service="+serviceType, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("market snapshot: %d %s", resp.StatusCode, string(body))
	}
	var snap model.MarketSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

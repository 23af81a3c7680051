// Package crm supplies customer intelligence (segment, lifetime value,
// churn risk) as plain data for scoring and pricing.
package crm

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
	GetProfile(ctx context.Context, customerID string) (*model.CustomerProfile, error)
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

func (c *HTTPClient) GetProfile(ctx context.Context, customerID string) (*model.CustomerProfile, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/customers/"+customerID, nil)
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
		return nil, fmt.Errorf("crm profile %s: %d %s", customerID, resp.StatusCode, string(body))
	}
	var profile model.CustomerProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

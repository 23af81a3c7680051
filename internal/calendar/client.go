// Package calendar talks to the crew calendar service, which owns crew
// records and resolves availability and performance before scoring.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/model"
)

type Client interface {
	ListCrews(ctx context.Context) ([]*model.Crew, error)
	GetCrew(ctx context.Context, id uuid.UUID) (*model.Crew, error)
	CommitDelta(ctx context.Context, delta *model.WorkloadDelta) error
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("calendar %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *HTTPClient) ListCrews(ctx context.Context) ([]*model.Crew, error) {
	data, err := c.doReq(ctx, "GET", "/api/v1/crews", nil)
	if err != nil {
		return nil, err
	}
	var crews []*model.Crew
	if err := json.Unmarshal(data, &crews); err != nil {
		return nil, err
	}
	return crews, nil
}

func (c *HTTPClient) GetCrew(ctx context.Context, id uuid.UUID) (*model.Crew, error) {
	data, err := c.doReq(ctx, "GET", "/api/v1/crews/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	var crew model.Crew
	if err := json.Unmarshal(data, &crew); err != nil {
		return nil, err
	}
	return &crew, nil
}

// CommitDelta applies a workload delta against the crew's calendar. The
// calendar service enforces the optimistic version check, keeping one writer
// per crew-day.
func (c *HTTPClient) CommitDelta(ctx context.Context, delta *model.WorkloadDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	_, err = c.doReq(ctx, "POST", "/api/v1/crews/"+delta.CrewID.String()+"/workload", bytes.NewReader(payload))
	return err
}

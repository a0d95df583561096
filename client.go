package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
)

// resourceBasePath prefixes every Misfit resource endpoint.
const resourceBasePath = "/move/resource/v1/user"

// Client issues authenticated GETs against the Misfit resource API.
type Client struct {
	http    *retry.Client
	baseURL string
	token   string
	userID  string
}

// NewClient builds a resource client for one user. userID defaults to "me",
// the token's owner.
func NewClient(baseURL, accessToken, userID string) (*Client, error) {
	if userID == "" {
		userID = "me"
	}

	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	retryClient, err := retry.NewBackgroundClient(retry.WithHTTPClient(baseHTTPClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		http:    retryClient,
		baseURL: baseURL,
		token:   accessToken,
		userID:  userID,
	}, nil
}

// get fetches one resource path (relative to the user) and returns the raw
// JSON body. Resource GETs are idempotent, so they ride the retrying client.
func (c *Client) get(ctx context.Context, resource string, query url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s%s/%s/%s", c.baseURL, resourceBasePath, c.userID, resource)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.RawMessage(body), nil
}

// dateRangeQuery builds the start_date/end_date parameters shared by the
// range-based resources.
func dateRangeQuery(startDate, endDate string) url.Values {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	return q
}

// Profile fetches the user profile, or a single profile object by ID.
func (c *Client) Profile(ctx context.Context, objectID string) (json.RawMessage, error) {
	return c.get(ctx, joinObject("profile", objectID), nil)
}

// Device fetches the user's device, or a single device object by ID.
func (c *Client) Device(ctx context.Context, objectID string) (json.RawMessage, error) {
	return c.get(ctx, joinObject("device", objectID), nil)
}

// Goals fetches goals for a date range, or a single goal by ID.
func (c *Client) Goals(ctx context.Context, startDate, endDate, objectID string) (json.RawMessage, error) {
	if objectID != "" {
		return c.get(ctx, joinObject("activity/goals", objectID), nil)
	}
	return c.get(ctx, "activity/goals", dateRangeQuery(startDate, endDate))
}

// Summary fetches the activity summary for a date range. With detail set,
// the provider returns one summary object per day.
func (c *Client) Summary(ctx context.Context, startDate, endDate string, detail bool) (json.RawMessage, error) {
	q := dateRangeQuery(startDate, endDate)
	if detail {
		q.Set("detail", "true")
	}
	return c.get(ctx, "activity/summary", q)
}

// Sessions fetches activity sessions for a date range, or one by ID.
func (c *Client) Sessions(ctx context.Context, startDate, endDate, objectID string) (json.RawMessage, error) {
	if objectID != "" {
		return c.get(ctx, joinObject("activity/sessions", objectID), nil)
	}
	return c.get(ctx, "activity/sessions", dateRangeQuery(startDate, endDate))
}

// Sleeps fetches sleep records for a date range, or one by ID.
func (c *Client) Sleeps(ctx context.Context, startDate, endDate, objectID string) (json.RawMessage, error) {
	if objectID != "" {
		return c.get(ctx, joinObject("activity/sleeps", objectID), nil)
	}
	return c.get(ctx, "activity/sleeps", dateRangeQuery(startDate, endDate))
}

func joinObject(resource, objectID string) string {
	if objectID == "" {
		return resource
	}
	return resource + "/" + objectID
}

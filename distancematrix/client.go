// Package distancematrix is a small client for the Google Distance Matrix
// JSON API. Only driving distance in meters is read from the response.
package distancematrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const StatusOK = "OK"

// Response mirrors the parts of the API response the planner reads.
type Response struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []Row  `json:"rows"`
}

type Row struct {
	Elements []Element `json:"elements"`
}

// Element is one origin/destination cell. Distance is only meaningful when
// Status is OK.
type Element struct {
	Status   string `json:"status"`
	Distance struct {
		Value int    `json:"value"`
		Text  string `json:"text"`
	} `json:"distance"`
}

// Client calls the distance-matrix endpoint.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

// StatusError is a transport-level failure: a non-2xx reply or a top-level
// status other than OK.
type StatusError struct {
	HTTPStatus int
	APIStatus  string
	Message    string
}

func (e *StatusError) Error() string {
	if e.APIStatus != "" {
		if e.Message != "" {
			return fmt.Sprintf("distancematrix: status %s: %s", e.APIStatus, e.Message)
		}
		return fmt.Sprintf("distancematrix: status %s", e.APIStatus)
	}
	return fmt.Sprintf("distancematrix: http %d", e.HTTPStatus)
}

// Temporary reports whether asking again could succeed.
func (e *StatusError) Temporary() bool {
	switch {
	case e.HTTPStatus == http.StatusTooManyRequests, e.HTTPStatus >= 500:
		return true
	case e.APIStatus == "OVER_QUERY_LIMIT", e.APIStatus == "UNKNOWN_ERROR":
		return true
	default:
		return false
	}
}

// Matrix requests distances from every origin to every destination.
func (c *Client) Matrix(ctx context.Context, origins, destinations []string) (*Response, error) {
	q := url.Values{}
	q.Set("origins", strings.Join(origins, "|"))
	q.Set("destinations", strings.Join(destinations, "|"))
	q.Set("units", "metric")
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("distancematrix: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distancematrix: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64*1024))
		return nil, &StatusError{HTTPStatus: res.StatusCode}
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("distancematrix: decode response: %w", err)
	}
	if out.Status != StatusOK {
		return nil, &StatusError{HTTPStatus: res.StatusCode, APIStatus: out.Status, Message: out.ErrorMessage}
	}
	return &out, nil
}

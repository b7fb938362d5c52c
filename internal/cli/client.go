package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcoot/koragame/internal/api/apierr"
	"github.com/mcoot/koragame/internal/api/request"
	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/replica"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = token
}

// APIError is an error response from the server. It unwraps to the model
// error the code stands for, so errors.Is works across the wire.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the matching model error, if any
func (e *APIError) Unwrap() error {
	return apierr.Sentinel(e.Code)
}

// Do performs an HTTP request and decodes a JSON result
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp apierr.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return &APIError{Status: resp.StatusCode, Code: errResp.Error.Code, Message: errResp.Error.Message}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

func matchPath(matchID string, suffix string) string {
	return "/api/v1/matches/" + url.PathEscape(matchID) + suffix
}

// MatchServer adapts the client to replica.Server for one player
type MatchServer struct {
	client *Client
}

var _ replica.Server = (*MatchServer)(nil)

// NewMatchServer wraps a client
func NewMatchServer(client *Client) *MatchServer {
	return &MatchServer{client: client}
}

// GetLog fetches the match log as the authenticated player sees it
func (s *MatchServer) GetLog(ctx context.Context, matchID model.MatchID) (*model.MatchLog, error) {
	var log response.MatchLog
	if err := s.client.Get(ctx, matchPath(string(matchID), "/log"), &log); err != nil {
		return nil, err
	}
	return log.ToModel()
}

// SubmitPlay sends a card for expectedTurn
func (s *MatchServer) SubmitPlay(ctx context.Context, matchID model.MatchID, expectedTurn int, card model.Card) (*model.Match, error) {
	req := request.PlayRequest{ExpectedTurn: &expectedTurn, Card: card.String()}
	var resp response.PlayResponse
	if err := s.client.Post(ctx, matchPath(string(matchID), "/plays"), req, &resp); err != nil {
		return nil, err
	}
	m, err := resp.Match.ToModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

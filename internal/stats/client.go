package stats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/apperr"
)

// TokenProvider supplies bearer tokens for the statistical API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client posts statistics requests and parses the responses.
type Client struct {
	URL     string
	HTTP    *http.Client
	Tokens  TokenProvider
	Channel string
}

// Query sends req and returns the quality-filtered points.
func (c *Client) Query(ctx context.Context, req Request) ([]Point, error) {
	const op = "stats query"

	body, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Body: apperr.TruncateBody(data)}
	}

	points, err := Parse(data, c.Channel)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("from", req.Aggregation.TimeRange.From).
		Str("to", req.Aggregation.TimeRange.To).
		Int("points", len(points)).
		Msg("Statistics received")

	return points, nil
}

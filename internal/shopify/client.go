package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/config"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

type Client struct {
	endpoint     string
	accessToken  string
	httpClient   *http.Client
	logger       *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint (used against httptest servers)
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithRetryInterval sets the initial backoff between attempts
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryBackoff = d }
}

// NewClient creates a new Shopify GraphQL client. Transient failures are retried up to maxAttempts times.
func NewClient(cfg config.ShopifyConfig, maxAttempts int, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Normalize shop domain - remove https://, http://, and trailing slashes
	shopDomain := cfg.ShopDomain
	shopDomain = strings.TrimPrefix(shopDomain, "https://")
	shopDomain = strings.TrimPrefix(shopDomain, "http://")
	shopDomain = strings.TrimSuffix(shopDomain, "/")

	if maxAttempts < 1 {
		maxAttempts = 1
	}
	c := &Client{
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shopDomain, cfg.APIVersion),
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message    string        `json:"message"`
	Path       []interface{} `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// UserError is the userErrors entry returned by Shopify mutations
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors joins mutation userErrors into one error. Returns nil for an empty list.
func UserErrors(op string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Field) > 0 {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(e.Field, "."), e.Message)
		} else {
			msgs[i] = e.Message
		}
	}
	return fmt.Errorf("%s userErrors: %s", op, strings.Join(msgs, "; "))
}

func isMutation(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "mutation")
}

// Execute executes a GraphQL query/mutation.
// Queries are retried on network errors, 429, 5xx and THROTTLED. Mutations are retried only when
// Shopify rejected them unapplied (429, THROTTLED); any other transport failure is returned wrapping
// apperrors.ErrOutcomeUnknown.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}) (*GraphQLResponse, error) {
	reqBody := GraphQLRequest{
		Query:     query,
		Variables: variables,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	mutation := isMutation(query)
	var out *GraphQLResponse
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := c.do(ctx, jsonData, mutation)
		if err != nil {
			c.logger.Warn("Shopify request failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Error(err),
			)
			return err
		}
		out = resp
		return nil
	}

	if err := backoff.Retry(operation, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
}

// do performs one attempt. Errors wrapped in backoff.Permanent are not retried.
func (c *Client) do(ctx context.Context, payload []byte, mutation bool) (*GraphQLResponse, error) {
	// the mutation may already be applied when the response is lost or Shopify fails mid-request
	uncertain := func(err error) error {
		if !mutation {
			return err
		}
		return backoff.Permanent(fmt.Errorf("%w: %v", apperrors.ErrOutcomeUnknown, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, uncertain(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, uncertain(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("shopify API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, uncertain(fmt.Errorf("shopify API error: status %d, body: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("shopify API error: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var graphQLResp GraphQLResponse
	if err := json.Unmarshal(body, &graphQLResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body)))
	}

	if len(graphQLResp.Errors) > 0 {
		throttled := false
		errorMessages := make([]string, len(graphQLResp.Errors))
		for i, e := range graphQLResp.Errors {
			errorMessages[i] = e.Message
			if e.Extensions.Code == "THROTTLED" {
				throttled = true
			}
		}
		err := fmt.Errorf("graphQL errors: %s", strings.Join(errorMessages, "; "))
		if throttled {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return &graphQLResp, nil
}

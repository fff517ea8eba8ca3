package clerk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned for transport failures and non-2xx responses.
var ErrUnavailable = errors.New("clerk api unavailable")

const defaultBaseURL = "https://api.clerk.com"

// Config holds the backend API credentials.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client reads organization plan metadata and membership counts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     zerolog.Logger
}

type organizationPayload struct {
	ID             string                 `json:"id"`
	PublicMetadata map[string]interface{} `json:"public_metadata"`
}

type membershipsPayload struct {
	TotalCount int `json:"total_count"`
}

// New constructs a client. A secret key is mandatory.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("clerk secret key must be provided")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  cfg.SecretKey,
		logger:     logger.With().Str("component", "clerk_client").Logger(),
	}, nil
}

// PlanID returns public_metadata.plan_id for the organization, or "" when unset.
func (c *Client) PlanID(ctx context.Context, orgID string) (string, error) {
	var org organizationPayload
	if err := c.get(ctx, "/v1/organizations/"+url.PathEscape(orgID), &org); err != nil {
		return "", err
	}

	planID, _ := org.PublicMetadata["plan_id"].(string)
	return strings.TrimSpace(planID), nil
}

// MemberCount returns the number of memberships in the organization.
func (c *Client) MemberCount(ctx context.Context, orgID string) (int, error) {
	var memberships membershipsPayload
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/memberships?limit=1"
	if err := c.get(ctx, path, &memberships); err != nil {
		return 0, err
	}
	return memberships.TotalCount, nil
}

func (c *Client) get(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build clerk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("clerk request failed")
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

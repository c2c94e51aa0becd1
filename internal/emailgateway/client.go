package emailgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	emailgatewaytypes "github.com/frahmantamala/task-dashboard/internal/core/datamodel/emailgateway"
)

const sendPath = "/api/v1.0/email/send"

type Config struct {
	BaseURL     string
	ServiceID   string
	TemplateID  string
	PublicKey   string
	AccessToken string
	Timeout     time.Duration
}

// Client posts templated emails to the provider. It holds no queue; callers
// decide how many sends run at once.
type Client struct {
	baseURL     string
	serviceID   string
	templateID  string
	publicKey   string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		serviceID:   config.ServiceID,
		templateID:  config.TemplateID,
		publicKey:   config.PublicKey,
		accessToken: config.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Send delivers one email. Any non-2xx answer is an error.
func (c *Client) Send(ctx context.Context, params emailgatewaytypes.TemplateParams) error {
	req := &emailgatewaytypes.SendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     c.templateID,
		UserID:         c.publicKey,
		AccessToken:    c.accessToken,
		TemplateParams: params,
	}
	if err := req.Validate(); err != nil {
		c.logger.ErrorContext(ctx, "email request validation failed", "error", err)
		return fmt.Errorf("validation error: %w", err)
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.DebugContext(ctx, "email sent", "to", params.ToEmail, "template_id", c.templateID)
	return nil
}

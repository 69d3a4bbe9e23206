package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"go.uber.org/zap"
)

// GatewayClient handles communication with the WhatsApp messaging gateway.
// All endpoints are tenant-scoped: baseURL/tenantID/api/v1/...
type GatewayClient struct {
	BaseURL    string
	TenantID   string
	APIKey     string
	HTTPClient *http.Client
}

// GatewayAPIResponse is the gateway's standard response envelope.
type GatewayAPIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		MessageID string `json:"messageId"`
	} `json:"result,omitempty"`
}

// SendSessionMessageRequest is the body for a free-form session message.
type SendSessionMessageRequest struct {
	MessageText string `json:"messageText"`
}

// SendTemplateMessageRequest is the body for a template message.
type SendTemplateMessageRequest struct {
	TemplateName string            `json:"templateName"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// NewGatewayClient creates a new messaging gateway client.
func NewGatewayClient(baseURL, tenantID, apiKey string) *GatewayClient {
	return &GatewayClient{
		BaseURL:  baseURL,
		TenantID: tenantID,
		APIKey:   apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendSessionMessage sends a free-form text message inside the open session
// window and returns the gateway's message ID as the delivery receipt.
func (c *GatewayClient) SendSessionMessage(ctx context.Context, phoneNumber, text string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/sendSessionMessage/%s",
		c.BaseURL, c.TenantID, url.PathEscape(phoneNumber))

	response, err := c.post(ctx, endpoint, SendSessionMessageRequest{MessageText: text})
	if err != nil {
		return "", err
	}

	logger.Base().Debug("Session message sent via gateway",
		zap.String("phone_number", phoneNumber),
		zap.String("message_id", response.Result.MessageID))
	return response.Result.MessageID, nil
}

// SendTemplateMessage sends a pre-approved template message, which works
// outside the 24-hour session window.
func (c *GatewayClient) SendTemplateMessage(ctx context.Context, phoneNumber, templateName string, parameters map[string]string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/api/v1/sendTemplateMessage/%s",
		c.BaseURL, c.TenantID, url.PathEscape(phoneNumber))

	response, err := c.post(ctx, endpoint, SendTemplateMessageRequest{
		TemplateName: templateName,
		Parameters:   parameters,
	})
	if err != nil {
		return "", err
	}

	logger.Base().Debug("Template message sent via gateway",
		zap.String("phone_number", phoneNumber),
		zap.String("template", templateName),
		zap.String("message_id", response.Result.MessageID))
	return response.Result.MessageID, nil
}

// Health checks the gateway's health endpoint.
func (c *GatewayClient) Health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s/api/v1/health", c.BaseURL, c.TenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway health returned status %d", domain.ErrExternalUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *GatewayClient) post(ctx context.Context, endpoint string, payload interface{}) (*GatewayAPIResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Base().Warn("Gateway request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: gateway returned status %d: %s",
			domain.ErrExternalUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var response GatewayAPIResponse
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Code != 200 {
		return nil, fmt.Errorf("gateway API error: code=%d, message=%s", response.Code, response.Message)
	}

	return &response, nil
}

package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wasla/backend/internal/domain/whatsapp"
)

const maxResponseSize = 1 << 20 // 1MB

// Client talks to the Green API REST endpoints. Each call targets one
// instance; credentials travel in the URL path per the provider scheme
// {apiURL}/waInstance{id}/{method}/{token}.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Green API client
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}

type stateInstanceResponse struct {
	StateInstance string `json:"stateInstance"`
}

// SendMessage delivers text through the instance and returns the provider
// message ID
func (c *Client) SendMessage(ctx context.Context, inst *whatsapp.Instance, phone, text string) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:  ChatID(phone),
		Message: text,
	})
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, inst, http.MethodPost, "sendMessage", payload)
	if err != nil {
		return "", err
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", whatsapp.ErrGatewayTransient, err)
	}
	if resp.IDMessage == "" {
		return "", fmt.Errorf("%w: empty message id", whatsapp.ErrGatewayTransient)
	}
	return resp.IDMessage, nil
}

// GetState reports the instance connection state
func (c *Client) GetState(ctx context.Context, inst *whatsapp.Instance) (whatsapp.InstanceState, error) {
	body, err := c.do(ctx, inst, http.MethodGet, "getStateInstance", nil)
	if err != nil {
		return "", err
	}

	var resp stateInstanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", whatsapp.ErrGatewayTransient, err)
	}
	return whatsapp.InstanceState(resp.StateInstance), nil
}

func (c *Client) do(ctx context.Context, inst *whatsapp.Instance, method, apiMethod string, payload []byte) ([]byte, error) {
	apiURL := inst.APIURL
	if apiURL == "" {
		apiURL = whatsapp.DefaultAPIURL
	}
	endpoint := fmt.Sprintf("%s/waInstance%s/%s/%s",
		strings.TrimRight(apiURL, "/"), inst.InstanceID, apiMethod, inst.Token)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", whatsapp.ErrGatewayTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", whatsapp.ErrGatewayTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", whatsapp.ErrInstanceNotAuthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &whatsapp.RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", whatsapp.ErrGatewayTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", whatsapp.ErrMessageRejected, resp.StatusCode)
	}
}

// retryAfter reads the provider's Retry-After header, in seconds or as an
// HTTP date. Zero means the provider gave no hint; the dispatcher falls
// back to its own backoff.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// ChatID converts a phone number into the Green API chat identifier,
// keeping digits only
func ChatID(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + "@c.us"
}

var _ whatsapp.Gateway = (*Client)(nil)

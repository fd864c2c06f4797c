package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wasla/backend/internal/domain/order"
)

// Provider error taxonomy. Adapters translate raw HTTP failures into these
// so callers can decide what is retryable without knowing the provider.
var (
	// ErrProviderTransient indicates a network failure or provider 5xx;
	// the operation may be retried with backoff
	ErrProviderTransient = errors.New("transient provider error")
	// ErrProviderRateLimited indicates the provider asked us to slow down;
	// retry after the provider-supplied or computed delay
	ErrProviderRateLimited = errors.New("provider rate limited")
	// ErrProviderAuthFailed indicates expired or revoked credentials;
	// never retried, the merchant must reconnect
	ErrProviderAuthFailed = errors.New("provider authentication failed")
	// ErrInvalidPayload indicates a malformed inbound payload;
	// logged and dropped, never retried
	ErrInvalidPayload = errors.New("invalid provider payload")
	// ErrInvalidSignature indicates a webhook signature mismatch
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrSourceNotConfigured indicates no credentials exist for the merchant
	ErrSourceNotConfigured = errors.New("source not configured for merchant")
	// ErrSourceNotRegistered indicates no adapter exists for the source system
	ErrSourceNotRegistered = errors.New("source system not registered")
)

// RateLimitError carries the wait the provider asked for. It wraps
// ErrProviderRateLimited so errors.Is classification still works.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return "provider rate limited, retry after " + e.RetryAfter.String()
}

// Unwrap returns the sentinel rate limit error
func (e *RateLimitError) Unwrap() error {
	return ErrProviderRateLimited
}

// SourceConfig holds per-merchant credentials for one source system
type SourceConfig struct {
	// BaseURL is the merchant's store or API base URL
	BaseURL string
	// APIKey is the primary credential (consumer key, access token)
	APIKey string
	// APISecret is the secondary credential where the provider uses one
	APISecret string
	// WebhookSecret signs inbound webhook deliveries
	WebhookSecret string
}

// Validate checks the config carries what the adapter needs
func (c *SourceConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("API key is required")
	}
	return nil
}

// PullRequest bounds one incremental pull run
type PullRequest struct {
	MerchantID uuid.UUID
	// Since is the watermark; only orders modified after it are fetched
	Since  time.Time
	PageNo int
	// PageSize is clamped to the provider maximum by Validate
	PageSize int
}

// Validate clamps pagination to sane bounds
func (r *PullRequest) Validate() error {
	if r.MerchantID == uuid.Nil {
		return errors.New("merchant ID is required")
	}
	if r.PageNo < 1 {
		r.PageNo = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 50
	}
	return nil
}

// PullResult is one page of normalized drafts
type PullResult struct {
	Drafts     []order.Draft
	HasMore    bool
	NextPageNo int
	// Watermark is the latest modification time seen, carried forward as
	// the next run's Since
	Watermark time.Time
}

// RawEvent is a webhook delivery after signature verification, handed to an
// adapter for normalization
type RawEvent struct {
	MerchantID uuid.UUID
	Provider   order.SourceSystem
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// OrderSource is the port every source adapter implements. Adapters own all
// provider-format knowledge; they produce drafts and never touch canonical
// state.
type OrderSource interface {
	// Code returns the source system this adapter serves
	Code() order.SourceSystem

	// Configure sets a merchant's credentials for this source
	Configure(merchantID uuid.UUID, config SourceConfig) error

	// RemoveConfig drops a merchant's credentials, e.g. on disconnect
	RemoveConfig(merchantID uuid.UUID)

	// IsConfigured reports whether the merchant has credentials
	IsConfigured(merchantID uuid.UUID) bool

	// Identify extracts the provider's delivery ID and topic from a
	// webhook delivery. An empty key means the provider sent no delivery
	// ID and the caller derives a fallback key from the payload.
	Identify(headers map[string]string, payload []byte) (idempotencyKey, topic string)

	// Normalize translates one verified webhook payload into a draft
	Normalize(ctx context.Context, event RawEvent) (*order.Draft, error)

	// PullOrders fetches one page of orders modified since the watermark
	PullOrders(ctx context.Context, req PullRequest) (*PullResult, error)

	// MapStatus translates a provider status string into a canonical status
	MapStatus(providerStatus string) order.Status

	// VerifySignature checks a webhook delivery against the merchant's
	// webhook secret. Returns ErrInvalidSignature on mismatch.
	VerifySignature(merchantID uuid.UUID, body []byte, headers map[string]string) error
}

// SourceRegistry resolves adapters by source system
type SourceRegistry interface {
	// Register adds an adapter; the last registration for a code wins
	Register(adapter OrderSource)
	// Get returns the adapter for a source system
	Get(code order.SourceSystem) (OrderSource, error)
	// List returns all registered adapters
	List() []OrderSource
}

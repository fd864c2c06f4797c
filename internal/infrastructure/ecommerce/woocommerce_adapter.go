package ecommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// WooCommerce webhook headers
const (
	wooSignatureHeader = "X-WC-Webhook-Signature"
	wooTopicHeader     = "X-WC-Webhook-Topic"
	wooDeliveryHeader  = "X-WC-Webhook-Delivery-ID"
)

// WooCommerceAdapter implements the OrderSource port against the
// WooCommerce REST API v3
type WooCommerceAdapter struct {
	httpClient *http.Client

	mu              sync.RWMutex
	merchantConfigs map[uuid.UUID]*integration.SourceConfig
}

// NewWooCommerceAdapter creates a WooCommerce adapter
func NewWooCommerceAdapter(timeout time.Duration) *WooCommerceAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WooCommerceAdapter{
		httpClient:      &http.Client{Timeout: timeout},
		merchantConfigs: make(map[uuid.UUID]*integration.SourceConfig),
	}
}

// Code returns the source system this adapter serves
func (a *WooCommerceAdapter) Code() order.SourceSystem {
	return order.SourceWooCommerce
}

// Configure sets a merchant's store credentials
func (a *WooCommerceAdapter) Configure(merchantID uuid.UUID, config integration.SourceConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if config.BaseURL == "" {
		return fmt.Errorf("woocommerce: store URL is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.merchantConfigs[merchantID] = &config
	return nil
}

// RemoveConfig drops a merchant's credentials
func (a *WooCommerceAdapter) RemoveConfig(merchantID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.merchantConfigs, merchantID)
}

// IsConfigured reports whether the merchant has credentials
func (a *WooCommerceAdapter) IsConfigured(merchantID uuid.UUID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.merchantConfigs[merchantID]
	return ok
}

// ConfiguredMerchants lists the merchants holding credentials for this source
func (a *WooCommerceAdapter) ConfiguredMerchants() []uuid.UUID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(a.merchantConfigs))
	for id := range a.merchantConfigs {
		out = append(out, id)
	}
	return out
}

func (a *WooCommerceAdapter) config(merchantID uuid.UUID) (*integration.SourceConfig, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cfg, ok := a.merchantConfigs[merchantID]
	if !ok {
		return nil, integration.ErrSourceNotConfigured
	}
	return cfg, nil
}

// VerifySignature checks the HMAC-SHA256 base64 signature WooCommerce
// computes over the raw request body
func (a *WooCommerceAdapter) VerifySignature(merchantID uuid.UUID, body []byte, headers map[string]string) error {
	cfg, err := a.config(merchantID)
	if err != nil {
		return err
	}
	got := headerValue(headers, wooSignatureHeader)
	if got == "" {
		return integration.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return integration.ErrInvalidSignature
	}
	return nil
}

// Identify extracts the WooCommerce delivery ID and topic headers
func (a *WooCommerceAdapter) Identify(headers map[string]string, _ []byte) (string, string) {
	return headerValue(headers, wooDeliveryHeader), headerValue(headers, wooTopicHeader)
}

// Normalize translates one webhook order payload into a draft
func (a *WooCommerceAdapter) Normalize(_ context.Context, event integration.RawEvent) (*order.Draft, error) {
	var wo wooOrder
	if err := json.Unmarshal(event.Payload, &wo); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	if wo.ID == 0 {
		return nil, fmt.Errorf("%w: missing order id", integration.ErrInvalidPayload)
	}
	draft := a.toDraft(event.MerchantID, &wo)
	draft.Origin = order.ChangeSourceWebhook
	draft.RawData = string(event.Payload)
	return draft, nil
}

// PullOrders fetches one page of orders modified since the watermark
func (a *WooCommerceAdapter) PullOrders(ctx context.Context, req integration.PullRequest) (*integration.PullResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg, err := a.config(req.MerchantID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(req.PageNo))
	params.Set("per_page", strconv.Itoa(req.PageSize))
	params.Set("orderby", "modified")
	params.Set("order", "asc")
	if !req.Since.IsZero() {
		params.Set("modified_after", req.Since.UTC().Format(time.RFC3339))
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/wp-json/wc/v3/orders?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(cfg.APIKey, cfg.APISecret)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrProviderTransient, err)
	}
	totalPages, _ := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))
	body, err := readClassified(resp)
	if err != nil {
		return nil, err
	}

	var orders []wooOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}

	result := &integration.PullResult{
		Drafts:     make([]order.Draft, 0, len(orders)),
		HasMore:    req.PageNo < totalPages,
		NextPageNo: req.PageNo + 1,
		Watermark:  req.Since,
	}
	for i := range orders {
		draft := a.toDraft(req.MerchantID, &orders[i])
		draft.Origin = order.ChangeSourcePullSync
		result.Drafts = append(result.Drafts, *draft)
		if t, err := time.Parse(time.RFC3339, orders[i].DateModified+"Z"); err == nil && t.After(result.Watermark) {
			result.Watermark = t
		}
	}
	return result, nil
}

// MapStatus translates a WooCommerce status into a canonical status
func (a *WooCommerceAdapter) MapStatus(providerStatus string) order.Status {
	switch strings.ToLower(providerStatus) {
	case "pending":
		return order.StatusPending
	case "processing", "on-hold":
		return order.StatusProcessing
	case "completed":
		return order.StatusCompleted
	case "cancelled":
		return order.StatusCancelled
	case "refunded":
		return order.StatusRefunded
	case "failed":
		return order.StatusFailed
	default:
		return order.StatusPending
	}
}

func (a *WooCommerceAdapter) toDraft(merchantID uuid.UUID, wo *wooOrder) *order.Draft {
	items := make([]order.LineItem, 0, len(wo.LineItems))
	for _, li := range wo.LineItems {
		total, _ := decimal.NewFromString(li.Total)
		items = append(items, order.LineItem{
			ProductID: strconv.FormatInt(li.ProductID, 10),
			Name:      li.Name,
			SKU:       li.SKU,
			Quantity:  li.Quantity,
			UnitPrice: li.Price,
			Total:     total,
		})
	}

	total, _ := decimal.NewFromString(wo.Total)
	shipping, _ := decimal.NewFromString(wo.ShippingTotal)
	tax, _ := decimal.NewFromString(wo.TotalTax)
	discount, _ := decimal.NewFromString(wo.DiscountTotal)
	subtotal := total.Sub(shipping).Sub(tax).Add(discount)

	name := strings.TrimSpace(wo.Billing.FirstName + " " + wo.Billing.LastName)
	occurredAt := time.Now()
	if t, err := time.Parse(time.RFC3339, wo.DateModified+"Z"); err == nil {
		occurredAt = t
	}

	return &order.Draft{
		MerchantID:    merchantID,
		SourceSystem:  order.SourceWooCommerce,
		SourceOrderID: strconv.FormatInt(wo.ID, 10),
		OrderNumber:   wo.Number,
		Kind:          order.KindOrder,
		Customer: order.Customer{
			Name:  name,
			Phone: wo.Billing.Phone,
			Email: wo.Billing.Email,
		},
		LineItems: items,
		Amounts: order.Amounts{
			Subtotal: subtotal,
			Shipping: shipping,
			Tax:      tax,
			Discount: discount,
			Total:    total,
		},
		Currency:       wo.Currency,
		Status:         a.MapStatus(wo.Status),
		TrackingNumber: wo.trackingNumber(),
		OccurredAt:     occurredAt,
	}
}

var _ integration.OrderSource = (*WooCommerceAdapter)(nil)

package notification

import (
	"strings"

	"github.com/wasla/backend/internal/domain/shared"
)

// Template IDs keyed by the order event that triggers them
const (
	TemplateOrderCreated    = "order_created"
	TemplateOrderProcessing = "order_processing"
	TemplateOrderCompleted  = "order_completed"
	TemplateOrderCancelled  = "order_cancelled"
	TemplateOrderRefunded   = "order_refunded"
	TemplateOrderShipped    = "order_shipped"
	TemplateBookingCreated  = "booking_created"
)

// Template is one message template. Placeholders use {{name}} syntax.
type Template struct {
	ID   string
	Body string
}

// Render substitutes placeholders from data. Unknown placeholders are left
// in place so a missing field is visible instead of silently blank.
func (t Template) Render(data map[string]string) string {
	out := t.Body
	for key, value := range data {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// defaultTemplates are the stock Arabic order notifications. Merchants can
// override them per template ID; ad-hoc bodies bypass the registry.
var defaultTemplates = map[string]Template{
	TemplateOrderCreated: {
		ID:   TemplateOrderCreated,
		Body: "مرحباً {{customerName}}! 🎉\nتم استلام طلبك رقم {{orderNumber}} من {{storeName}} بنجاح.\nالإجمالي: {{total}} {{currency}}\nسنوافيك بأي تحديثات على طلبك.",
	},
	TemplateOrderProcessing: {
		ID:   TemplateOrderProcessing,
		Body: "عزيزي {{customerName}}،\nطلبك رقم {{orderNumber}} قيد التجهيز الآن. ⏳\nشكراً لتسوقك من {{storeName}}!",
	},
	TemplateOrderCompleted: {
		ID:   TemplateOrderCompleted,
		Body: "عزيزي {{customerName}}،\nتم اكتمال طلبك رقم {{orderNumber}} بنجاح. ✅\nنتمنى أن تكون راضياً عن تجربتك مع {{storeName}}!",
	},
	TemplateOrderCancelled: {
		ID:   TemplateOrderCancelled,
		Body: "عزيزي {{customerName}}،\nنأسف لإبلاغك بأن طلبك رقم {{orderNumber}} قد تم إلغاؤه.\nلأي استفسار يرجى التواصل مع {{storeName}}.",
	},
	TemplateOrderRefunded: {
		ID:   TemplateOrderRefunded,
		Body: "عزيزي {{customerName}}،\nتم استرداد مبلغ طلبك رقم {{orderNumber}} ({{total}} {{currency}}).\nشكراً لتفهمك، {{storeName}}.",
	},
	TemplateOrderShipped: {
		ID:   TemplateOrderShipped,
		Body: "عزيزي {{customerName}}،\nطلبك رقم {{orderNumber}} في الطريق إليك! 🚚\nرقم التتبع: {{trackingNumber}}\n{{storeName}}",
	},
	TemplateBookingCreated: {
		ID:   TemplateBookingCreated,
		Body: "مرحباً {{customerName}}!\nتم تأكيد حجزك مع {{storeName}}. 📅\nرقم الحجز: {{orderNumber}}\nنتطلع لرؤيتك!",
	},
}

// Registry resolves templates by ID, preferring merchant overrides
type Registry struct {
	overrides map[string]Template
}

// NewRegistry creates a template registry with the stock templates
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[string]Template)}
}

// Override replaces the body for one template ID
func (r *Registry) Override(t Template) {
	r.overrides[t.ID] = t
}

// Get returns the template for an ID
func (r *Registry) Get(id string) (Template, error) {
	if t, ok := r.overrides[id]; ok {
		return t, nil
	}
	if t, ok := defaultTemplates[id]; ok {
		return t, nil
	}
	return Template{}, shared.NewDomainError("TEMPLATE_NOT_FOUND", "No template registered for "+id)
}

package ecommerce

import "github.com/shopspring/decimal"

// wooOrder is the WooCommerce REST v3 order representation, reduced to the
// fields reconciliation needs
type wooOrder struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	Total         string         `json:"total"`
	ShippingTotal string         `json:"shipping_total"`
	TotalTax      string         `json:"total_tax"`
	DiscountTotal string         `json:"discount_total"`
	DateModified  string         `json:"date_modified_gmt"`
	Billing       wooBilling     `json:"billing"`
	LineItems     []wooLineItem  `json:"line_items"`
	MetaData      []wooMetaEntry `json:"meta_data"`
}

type wooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type wooLineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     string          `json:"total"`
}

type wooMetaEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// trackingNumber extracts a shipment tracking number when a tracking plugin
// stored one in order meta
func (o *wooOrder) trackingNumber() string {
	for _, m := range o.MetaData {
		if m.Key == "_tracking_number" || m.Key == "tracking_number" {
			if s, ok := m.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

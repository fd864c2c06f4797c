package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a caller-supplied sort direction. Anything
// other than a case-insensitive "asc" collapses to "DESC", which keeps the
// value safe to splice into an ORDER BY clause.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks a caller-supplied column name against a
// whitelist and falls back to defaultField on anything unlisted. List
// queries never interpolate a sort column that did not pass through here.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortWhitelist builds a whitelist from the columns every table shares
// plus the entity-specific extras.
func sortWhitelist(extra ...string) map[string]bool {
	fields := map[string]bool{
		"id":         true,
		"created_at": true,
		"updated_at": true,
	}
	for _, f := range extra {
		fields[f] = true
	}
	return fields
}

// OrderSortFields lists the sortable columns of the orders table.
var OrderSortFields = sortWhitelist(
	"order_number",
	"source_system",
	"source_order_id",
	"status",
	"total",
	"completed_at",
)

// SyncRunSortFields lists the sortable columns of the sync_runs table.
var SyncRunSortFields = sortWhitelist(
	"source_system",
	"status",
	"started_at",
	"finished_at",
)

// WebhookEventSortFields lists the sortable columns of the webhook ledger.
var WebhookEventSortFields = sortWhitelist(
	"provider",
	"outcome",
	"received_at",
	"processed_at",
)

// Package reconcile folds drafts from every ingestion path into the single
// canonical order per natural key.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/order"
	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/infrastructure/lane"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
)

// Outcome classifies what reconciliation did with a draft
type Outcome string

const (
	// OutcomeCreated means the draft was the first sight of its natural key
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means an existing order changed status or details
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnchanged means the draft carried nothing new
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeRejected means the draft's status was a regression and the
	// order was left untouched
	OutcomeRejected Outcome = "rejected"
)

// Result reports what reconciliation did with one draft
type Result struct {
	Order   *order.Order
	Outcome Outcome
}

// Service reconciles drafts against canonical orders. All writes for one
// natural key run on the same lane, so concurrent webhook and pull-sync
// deliveries for an order never interleave.
type Service struct {
	orders         order.Repository
	statusEvents   order.StatusEventRepository
	lanes          *lane.Manager
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a reconciliation service
func NewService(orders order.Repository, statusEvents order.StatusEventRepository, lanes *lane.Manager, logger *zap.Logger) *Service {
	return &Service{
		orders:       orders,
		statusEvents: statusEvents,
		lanes:        lanes,
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Reconcile applies one draft to the canonical order for its natural key.
// First sight creates the order; later drafts refresh details and attempt
// the status transition. A regression is recorded and rejected without
// touching the order.
func (s *Service) Reconcile(ctx context.Context, draft *order.Draft) (*Result, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "order.reconcile",
		telemetry.WithAttribute(telemetry.SpanAttrMerchantID, draft.MerchantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSource, draft.SourceSystem.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExternalID, draft.SourceOrderID))
	defer span.End()

	key := fmt.Sprintf("%s:%s:%s", draft.MerchantID, draft.SourceSystem, draft.SourceOrderID)

	var result *Result
	err := s.lanes.Run(ctx, key, func() error {
		var laneErr error
		result, laneErr = s.reconcileOnLane(ctx, draft)
		return laneErr
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, result.Order.ID.String(),
		"outcome", string(result.Outcome))
	return result, nil
}

func (s *Service) reconcileOnLane(ctx context.Context, draft *order.Draft) (*Result, error) {
	existing, err := s.orders.FindByNaturalKey(ctx, draft.MerchantID, draft.SourceSystem, draft.SourceOrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return s.createFromDraft(ctx, draft)
		}
		return nil, err
	}
	return s.applyToExisting(ctx, existing, draft)
}

func (s *Service) createFromDraft(ctx context.Context, draft *order.Draft) (*Result, error) {
	o, err := order.NewOrderFromDraft(draft)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}

	// First sight at a non-pending status still leaves an audit row, so the
	// status log covers the order's whole life.
	if o.Status != order.StatusPending {
		if err := s.statusEvents.Append(ctx, order.NewStatusEvent(o, order.StatusPending, o.Status, draft.Origin)); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Order created from draft",
		zap.String("order_id", o.ID.String()),
		zap.String("source_system", o.SourceSystem.String()),
		zap.String("source_order_id", o.SourceOrderID),
		zap.String("status", o.Status.String()))

	return &Result{Order: o, Outcome: OutcomeCreated}, nil
}

func (s *Service) applyToExisting(ctx context.Context, o *order.Order, draft *order.Draft) (*Result, error) {
	transitioning := draft.Status != o.Status
	if transitioning && !o.Status.CanTransitionTo(draft.Status) {
		// A stale draft refreshes nothing; its details may be older than
		// what the order already carries.
		return s.rejectRegression(ctx, o, draft)
	}
	if !transitioning && !detailsChanged(o, draft) {
		return &Result{Order: o, Outcome: OutcomeUnchanged}, nil
	}

	// Details first, so the status event snapshots the draft's phone,
	// total and tracking number rather than the pre-update order.
	from := o.Status
	o.RefreshDetails(draft)
	if transitioning {
		if err := o.ChangeStatus(draft.Status, draft.Origin); err != nil {
			return nil, err
		}
		if err := s.statusEvents.Append(ctx, order.NewStatusEvent(o, from, draft.Status, draft.Origin)); err != nil {
			return nil, err
		}
	}
	o.IncrementVersion()
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	return &Result{Order: o, Outcome: OutcomeUpdated}, nil
}

// rejectRegression records the refused transition for audit and notifies
// subscribers, leaving the order itself untouched.
func (s *Service) rejectRegression(ctx context.Context, o *order.Order, draft *order.Draft) (*Result, error) {
	if err := s.statusEvents.Append(ctx, order.NewRejectedStatusEvent(o, draft.Status, draft.Origin)); err != nil {
		return nil, err
	}

	s.logger.Warn("Status regression rejected",
		zap.String("order_id", o.ID.String()),
		zap.String("current_status", o.Status.String()),
		zap.String("attempted_status", draft.Status.String()),
		zap.String("origin", string(draft.Origin)))

	if s.eventPublisher != nil {
		event := order.NewRegressionRejectedEvent(o, draft.Status, draft.Origin)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish regression rejected event", zap.Error(err))
		}
	}
	return &Result{Order: o, Outcome: OutcomeRejected}, nil
}

// detailsChanged reports whether the draft carries any detail the order does
// not already have. Same-status drafts with nothing new are dropped without
// a write, so webhook redeliveries stay cheap.
func detailsChanged(o *order.Order, d *order.Draft) bool {
	if d.OrderNumber != "" && d.OrderNumber != o.OrderNumber {
		return true
	}
	if d.TrackingNumber != "" && d.TrackingNumber != o.TrackingNumber {
		return true
	}
	if d.Currency != "" && d.Currency != o.Currency {
		return true
	}
	if (d.Customer.Name != "" || d.Customer.Phone != "" || d.Customer.Email != "") && d.Customer != o.Customer {
		return true
	}
	if len(d.LineItems) > 0 && len(d.LineItems) != len(o.LineItems) {
		return true
	}
	if !d.Amounts.Total.IsZero() && !d.Amounts.Total.Equal(o.Amounts.Total) {
		return true
	}
	return false
}

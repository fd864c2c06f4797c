// Package dispatch sends order notifications over WhatsApp with quota
// enforcement, bounded retries, and instance failover.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/application/pool"
	"github.com/wasla/backend/internal/domain/notification"
	"github.com/wasla/backend/internal/domain/whatsapp"
	"github.com/wasla/backend/internal/infrastructure/telemetry"
)

// RetryPolicy bounds the retry chain for transient failures
type RetryPolicy struct {
	// MaxAttempts caps the total number of attempts per notification
	MaxAttempts int
	// BackoffBase is the delay before the second attempt; attempt n waits
	// BackoffBase * 2^(n-1), capped at BackoffCap
	BackoffBase time.Duration
	// BackoffCap bounds the exponential growth
	BackoffCap time.Duration
}

// DefaultRetryPolicy matches the behavior merchants expect: three tries
// within roughly a minute and a half.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BackoffBase: 30 * time.Second,
	BackoffCap:  10 * time.Minute,
}

// NextDelay returns the wait before the attempt after attemptNumber,
// jittered by up to 20% so synchronized retries spread out.
func (p RetryPolicy) NextDelay(attemptNumber int) time.Duration {
	delay := p.BackoffBase
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= p.BackoffCap {
			delay = p.BackoffCap
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	return delay + jitter
}

// Service executes dispatch attempts. Each call to Dispatch performs at
// most one send (plus one immediate failover on an instance failure) and
// persists the outcome; retries are picked up later via FindDue.
type Service struct {
	notifications notification.Repository
	pool          *pool.Service
	gateway       whatsapp.Gateway
	quota         notification.Quota
	policy        RetryPolicy
	logger        *zap.Logger
}

// NewService creates a dispatch service
func NewService(notifications notification.Repository, instancePool *pool.Service, gateway whatsapp.Gateway, quota notification.Quota, policy RetryPolicy, logger *zap.Logger) *Service {
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy
	}
	return &Service{
		notifications: notifications,
		pool:          instancePool,
		gateway:       gateway,
		quota:         quota,
		policy:        policy,
		logger:        logger,
	}
}

// Dispatch runs one attempt for the notification and persists the result.
// The returned notification carries the new attempt and scheduling state.
func (s *Service) Dispatch(ctx context.Context, n *notification.Notification) error {
	if n.IsClosed() {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "notification.dispatch",
		telemetry.WithAttribute(telemetry.SpanAttrNotificationID, n.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrMerchantID, n.MerchantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAttempt, n.NextAttemptNumber()))
	defer span.End()
	scheduledAt := time.Now()

	if err := s.quota.Consume(ctx, n.MerchantID); err != nil {
		if errors.Is(err, notification.ErrQuotaExceeded) {
			n.RecordPermanentFailure("", notification.FailurePermanent, "message quota exceeded", scheduledAt)
			s.logger.Warn("Notification dropped on exhausted quota",
				zap.String("merchant_id", n.MerchantID.String()),
				zap.String("notification_id", n.ID.String()))
			return s.save(ctx, n)
		}
		telemetry.RecordError(span, err)
		return err
	}

	inst, err := s.pool.Select(ctx, n.MerchantID)
	if err != nil {
		if errors.Is(err, whatsapp.ErrInstanceUnavailable) {
			n.RecordPermanentFailure("", notification.FailurePermanent, "no active whatsapp instance", scheduledAt)
			s.logger.Warn("Notification dropped with no active instance",
				zap.String("merchant_id", n.MerchantID.String()),
				zap.String("notification_id", n.ID.String()))
			return s.save(ctx, n)
		}
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInstanceID, inst.InstanceID)
	s.attempt(ctx, n, inst, scheduledAt, true)
	telemetry.SetAttributes(span, "outcome", string(n.Status))
	return s.save(ctx, n)
}

// attempt sends once on the given instance. An instance-specific failure
// triggers one immediate failover to a different instance; every other
// failure is recorded and left for the retry sweep.
func (s *Service) attempt(ctx context.Context, n *notification.Notification, inst *whatsapp.Instance, scheduledAt time.Time, allowFailover bool) {
	_, err := s.gateway.SendMessage(ctx, inst, n.CustomerPhone, n.Message)
	if err == nil {
		n.RecordSent(inst.InstanceID, scheduledAt)
		s.logger.Info("Notification sent",
			zap.String("notification_id", n.ID.String()),
			zap.String("instance_id", inst.InstanceID))
		return
	}

	var rateLimited *whatsapp.RateLimitError
	switch {
	case errors.As(err, &rateLimited):
		// The provider named its own wait; never retry sooner than that
		s.recordTransient(n, inst.InstanceID, notification.FailureTransient, err.Error(), scheduledAt, rateLimited.RetryAfter)

	case errors.Is(err, whatsapp.ErrInstanceNotAuthorized):
		s.logger.Warn("Instance rejected send",
			zap.String("instance_id", inst.InstanceID),
			zap.Error(err))
		if allowFailover {
			if alt, altErr := s.pool.SelectFailover(ctx, n.MerchantID, inst.ID); altErr == nil {
				s.attempt(ctx, n, alt, scheduledAt, false)
				return
			}
		}
		s.recordTransient(n, inst.InstanceID, notification.FailureInstance, err.Error(), scheduledAt, 0)

	case errors.Is(err, whatsapp.ErrGatewayTransient):
		s.recordTransient(n, inst.InstanceID, notification.FailureTransient, err.Error(), scheduledAt, 0)

	default:
		// The provider refused the message itself; retrying cannot help
		n.RecordPermanentFailure(inst.InstanceID, notification.FailurePermanent, err.Error(), scheduledAt)
	}
}

func (s *Service) recordTransient(n *notification.Notification, instanceID string, kind notification.FailureKind, reason string, scheduledAt time.Time, minDelay time.Duration) {
	delay := s.policy.NextDelay(n.NextAttemptNumber())
	if minDelay > delay {
		delay = minDelay
	}
	nextAt := scheduledAt.Add(delay)
	retrying := n.RecordTransientFailure(instanceID, kind, reason, scheduledAt, nextAt, s.policy.MaxAttempts)
	if !retrying {
		s.logger.Warn("Notification retries exhausted",
			zap.String("notification_id", n.ID.String()),
			zap.Int("attempts", len(n.Attempts)))
	}
}

func (s *Service) save(ctx context.Context, n *notification.Notification) error {
	n.IncrementVersion()
	return s.notifications.Save(ctx, n)
}

// DispatchDue runs one retry sweep: every pending notification whose next
// attempt is due gets one more dispatch. Returns how many were attempted.
func (s *Service) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.notifications.FindDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		if ctx.Err() != nil {
			return attempted, ctx.Err()
		}
		if err := s.Dispatch(ctx, &due[i]); err != nil {
			s.logger.Error("Retry dispatch failed",
				zap.String("notification_id", due[i].ID.String()),
				zap.Error(err))
			continue
		}
		attempted++
	}
	return attempted, nil
}

// ListForOrder returns an order's notifications with their attempts
func (s *Service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]notification.Notification, error) {
	return s.notifications.FindByOrder(ctx, orderID)
}

// Package pool manages a merchant's WhatsApp instances: registration,
// connection testing, primary promotion, and sender selection for dispatch.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/whatsapp"
	"github.com/wasla/backend/internal/infrastructure/cache"
)

// Service coordinates the WhatsApp instance pool for all merchants
type Service struct {
	instances whatsapp.Repository
	gateway   whatsapp.Gateway
	cursor    cache.RoundRobinCursor
	agent     whatsapp.Agent
	logger    *zap.Logger
}

// NewService creates an instance pool service
func NewService(instances whatsapp.Repository, gateway whatsapp.Gateway, logger *zap.Logger) *Service {
	return &Service{
		instances: instances,
		gateway:   gateway,
		cursor:    cache.NewInMemoryRoundRobinCursor(),
		logger:    logger,
	}
}

// SetCursor replaces the rotation cursor, e.g. with the Redis-backed one
// that shares the rotation across processes
func (s *Service) SetCursor(cursor cache.RoundRobinCursor) {
	s.cursor = cursor
}

// Register adds a pending instance for a merchant. The instance cannot
// carry sends until a connection test succeeds.
func (s *Service) Register(ctx context.Context, merchantID uuid.UUID, instanceID, token, apiURL string, expiresAt *time.Time) (*whatsapp.Instance, error) {
	inst, err := whatsapp.NewInstance(merchantID, instanceID, token)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		inst.APIURL = apiURL
	}
	inst.ExpiresAt = expiresAt

	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, err
	}

	s.logger.Info("WhatsApp instance registered",
		zap.String("merchant_id", merchantID.String()),
		zap.String("instance_id", instanceID))
	return inst, nil
}

// TestConnection queries the provider for the instance's live state. An
// authorized state activates the instance; this is the only path out of
// the inactive and expired states. Any other state records the failure,
// deactivating the instance if it was active.
func (s *Service) TestConnection(ctx context.Context, merchantID uuid.UUID, instanceID string) (*whatsapp.Instance, error) {
	inst, err := s.instances.FindByInstanceID(ctx, merchantID, instanceID)
	if err != nil {
		return nil, err
	}

	state, err := s.gateway.GetState(ctx, inst)
	if err != nil {
		inst.RecordFailure(err.Error())
		inst.IncrementVersion()
		if saveErr := s.instances.Save(ctx, inst); saveErr != nil {
			return nil, saveErr
		}
		return inst, err
	}

	if state == whatsapp.StateAuthorized {
		if err := inst.Activate(""); err != nil {
			return nil, err
		}
	} else {
		reason := fmt.Sprintf("instance state is %s", state)
		if inst.Status == whatsapp.InstanceActive {
			if err := inst.Deactivate(reason); err != nil {
				return nil, err
			}
		} else {
			inst.RecordFailure(reason)
		}
	}

	inst.IncrementVersion()
	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, err
	}

	s.logger.Info("WhatsApp connection tested",
		zap.String("merchant_id", merchantID.String()),
		zap.String("instance_id", instanceID),
		zap.String("state", string(state)),
		zap.String("status", string(inst.Status)))
	return inst, nil
}

// Select picks the instance to carry the next send: the active primary
// when one exists, otherwise round-robin over active secondaries. Returns
// ErrInstanceUnavailable when the merchant has no active instance.
func (s *Service) Select(ctx context.Context, merchantID uuid.UUID) (*whatsapp.Instance, error) {
	return s.selectExcluding(ctx, merchantID, uuid.Nil)
}

// SelectFailover picks an active instance other than the one that just
// failed. Returns ErrInstanceUnavailable when no alternative exists.
func (s *Service) SelectFailover(ctx context.Context, merchantID, failedID uuid.UUID) (*whatsapp.Instance, error) {
	return s.selectExcluding(ctx, merchantID, failedID)
}

func (s *Service) selectExcluding(ctx context.Context, merchantID, excludeID uuid.UUID) (*whatsapp.Instance, error) {
	active, err := s.instances.FindActiveForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	candidates := make([]whatsapp.Instance, 0, len(active))
	for _, inst := range active {
		if inst.ID != excludeID {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		return nil, whatsapp.ErrInstanceUnavailable
	}

	// The repository orders the primary first
	if candidates[0].Role == whatsapp.RolePrimary {
		return &candidates[0], nil
	}

	n, err := s.cursor.Next(ctx, merchantID)
	if err != nil {
		// Rotation is advisory; fall back to the first secondary
		s.logger.Warn("Round-robin cursor unavailable", zap.Error(err))
		n = 0
	}
	return &candidates[n%uint64(len(candidates))], nil
}

// PromoteToPrimary makes the given active instance the merchant's primary,
// demoting the current one in the same transaction.
func (s *Service) PromoteToPrimary(ctx context.Context, merchantID, id uuid.UUID) error {
	if err := s.instances.PromoteToPrimary(ctx, merchantID, id); err != nil {
		return err
	}
	s.logger.Info("WhatsApp instance promoted to primary",
		zap.String("merchant_id", merchantID.String()),
		zap.String("id", id.String()))
	return nil
}

// Deactivate takes an instance out of rotation deliberately
func (s *Service) Deactivate(ctx context.Context, merchantID uuid.UUID, instanceID, reason string) (*whatsapp.Instance, error) {
	inst, err := s.instances.FindByInstanceID(ctx, merchantID, instanceID)
	if err != nil {
		return nil, err
	}
	if err := inst.Deactivate(reason); err != nil {
		return nil, err
	}
	inst.IncrementVersion()
	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// List returns all of a merchant's instances
func (s *Service) List(ctx context.Context, merchantID uuid.UUID) ([]whatsapp.Instance, error) {
	return s.instances.FindForMerchant(ctx, merchantID)
}

// ExpireOverdue sweeps active instances whose TTL passed and marks them
// expired. Returns how many instances were expired; the sweep keeps going
// past individual failures.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	overdue, err := s.instances.FindExpiring(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		inst := &overdue[i]
		if err := inst.Expire(); err != nil {
			s.logger.Warn("Skipping instance that cannot expire",
				zap.String("id", inst.ID.String()),
				zap.Error(err))
			continue
		}
		inst.IncrementVersion()
		if err := s.instances.Save(ctx, inst); err != nil {
			s.logger.Error("Failed to persist instance expiry",
				zap.String("id", inst.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("Expired overdue WhatsApp instances", zap.Int("count", expired))
	}
	return expired, nil
}

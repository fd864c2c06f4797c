package pool

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/shared"
	"github.com/wasla/backend/internal/domain/whatsapp"
)

// SetAgent wires the conversational agent that consumes inbound messages.
// Without an agent, inbound messages are acknowledged and dropped.
func (s *Service) SetAgent(agent whatsapp.Agent) {
	s.agent = agent
}

// ApplyProviderState applies a stateInstanceChanged webhook to the pool.
// The instance is resolved by its provider ID since the webhook carries no
// merchant context.
func (s *Service) ApplyProviderState(ctx context.Context, instanceID string, state whatsapp.InstanceState) error {
	inst, err := s.instances.FindByProviderInstanceID(ctx, instanceID)
	if err != nil {
		return err
	}

	switch state {
	case whatsapp.StateAuthorized:
		if inst.Status == whatsapp.InstanceActive {
			return nil
		}
		if err := inst.Activate(""); err != nil {
			return err
		}
	case whatsapp.StateNotAuthorized, whatsapp.StateBlocked:
		if inst.Status != whatsapp.InstanceActive {
			inst.RecordFailure("provider reported state " + string(state))
		} else if err := inst.Deactivate("provider reported state " + string(state)); err != nil {
			return err
		}
	case whatsapp.StateStarting:
		// Transitional state, nothing to record yet
		return nil
	default:
		s.logger.Debug("Ignoring unknown instance state",
			zap.String("instance_id", instanceID),
			zap.String("state", string(state)))
		return nil
	}

	if err := s.instances.Save(ctx, inst); err != nil {
		return err
	}

	s.logger.Info("Instance state updated from provider webhook",
		zap.String("instance_id", instanceID),
		zap.String("state", string(state)),
		zap.String("status", string(inst.Status)))
	return nil
}

// ReceiveMessage resolves the receiving instance's merchant and hands the
// inbound message to the agent. Unknown instances are rejected so the
// provider stops delivering to stale webhooks.
func (s *Service) ReceiveMessage(ctx context.Context, msg whatsapp.IncomingMessage) error {
	inst, err := s.instances.FindByProviderInstanceID(ctx, msg.InstanceID)
	if err != nil {
		return shared.NewDomainError("INSTANCE_NOT_FOUND",
			"No registered instance for inbound message")
	}

	if s.agent == nil {
		s.logger.Debug("No agent wired, inbound message dropped",
			zap.String("instance_id", msg.InstanceID),
			zap.String("chat_id", msg.ChatID))
		return nil
	}

	return s.agent.HandleIncomingMessage(ctx, inst.MerchantID, msg)
}

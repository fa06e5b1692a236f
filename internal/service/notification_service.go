package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/notify"
)

// NotificationService delivers verification codes in response to lifecycle
// events. Delivery runs inline with the publishing request; an error here
// fails that request.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleOTPIssued)
	n.dispatcher.Subscribe(events.EventOTPResent, n.handleOTPIssued)
	n.dispatcher.Subscribe(events.EventAccountVerified, n.handleAccountVerified)
}

func (n *NotificationService) handleOTPIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OTPIssuedPayload)
	if !ok {
		return errors.New("unexpected payload for otp event")
	}

	if err := n.notifier.SendOTP(ctx, payload.Email, payload.Code); err != nil {
		n.logger.Error("otp delivery failed",
			zap.String("email", payload.Email),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}

	n.logger.Info("otp delivered",
		zap.String("email", payload.Email),
		zap.String("event_type", string(event.Type)))
	return nil
}

func (n *NotificationService) handleAccountVerified(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountVerifiedPayload)
	if !ok {
		return errors.New("unexpected payload for verified event")
	}
	n.logger.Info("account verified", zap.String("email", payload.Email))
	return nil
}

package service

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"
	"go.uber.org/zap"

	"github.com/nftix/ticket-lifecycle/internal/config"
	"github.com/nftix/ticket-lifecycle/internal/events"
)

// PushPublisher delivers a message to a realtime channel.
type PushPublisher interface {
	Publish(channel string, message map[string]interface{}) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

// NewPubNubPublisher returns a PubNub-backed publisher, or nil when push is
// not configured.
func NewPubNubPublisher(cfg config.NotificationConfig) PushPublisher {
	if !cfg.PushEnabled() {
		return nil
	}
	pnCfg := pubnub.NewConfig()
	pnCfg.PublishKey = cfg.PubNubPublishKey
	pnCfg.SubscribeKey = cfg.PubNubSubscribeKey
	pnCfg.SecretKey = cfg.PubNubSecretKey
	return &pubnubPublisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *pubnubPublisher) Publish(channel string, message map[string]interface{}) error {
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return err
	}
	return checkPublishStatus(status)
}

func checkPublishStatus(status pubnub.StatusResponse) error {
	if status.Error != nil {
		return fmt.Errorf("pubnub publish: %w", status.Error)
	}
	if status.StatusCode >= 400 {
		return fmt.Errorf("pubnub publish: status %d", status.StatusCode)
	}
	return nil
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  PushPublisher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil publisher only logs.
func NewNotificationService(dispatcher events.Dispatcher, publisher PushPublisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketMinted, n.handleTicketMinted)
	n.dispatcher.Subscribe(events.EventTicketAttended, n.handleTicketAttended)
	n.dispatcher.Subscribe(events.EventRewardClaimed, n.handleRewardClaimed)
	n.dispatcher.Subscribe(events.EventRewardUnlocked, n.handleRewardUnlocked)
}

func (n *NotificationService) handleTicketMinted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMinted", zap.String("ticket_id", event.TicketID), zap.String("event_id", event.EventID))
	return n.push(ctx, event)
}

func (n *NotificationService) handleTicketAttended(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAttended", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.push(ctx, event)
}

func (n *NotificationService) handleRewardClaimed(ctx context.Context, event events.Event) error {
	n.logger.Info("RewardClaimed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.push(ctx, event)
}

func (n *NotificationService) handleRewardUnlocked(ctx context.Context, event events.Event) error {
	n.logger.Info("RewardUnlocked", zap.String("ticket_id", event.TicketID))
	return n.push(ctx, event)
}

// HolderChannel names the push channel for a holder address.
func (n *NotificationService) HolderChannel(holder string) string {
	prefix := n.cfg.ChannelPrefix
	if prefix == "" {
		prefix = "holder"
	}
	return prefix + "-" + holder
}

func (n *NotificationService) push(_ context.Context, event events.Event) error {
	if n.publisher == nil || event.Holder == "" {
		return nil
	}
	message := map[string]interface{}{
		"type":      string(event.Type),
		"id":        event.ID,
		"tokenId":   event.TicketID,
		"eventId":   event.EventID,
		"timestamp": event.Timestamp.Unix(),
		"payload":   event.Payload,
	}
	channel := n.HolderChannel(event.Holder)
	if err := n.publisher.Publish(channel, message); err != nil {
		n.logger.Warn("push notification failed",
			zap.String("channel", channel),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	n.logger.Debug("push notification sent", zap.String("channel", channel), zap.String("event_type", string(event.Type)))
	return nil
}

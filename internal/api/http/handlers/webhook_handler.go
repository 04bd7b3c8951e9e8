package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nftix/ticket-lifecycle/internal/api/dto"
	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/service"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// WebhookHandler applies chain events relayed from the ticket contracts.
type WebhookHandler struct {
	service *service.LifecycleService
	logger  *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(lifecycle *service.LifecycleService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: lifecycle, logger: logger}
}

// BlockchainWebhook POST /blockchainWebhook.
func (h *WebhookHandler) BlockchainWebhook(c *fiber.Ctx) error {
	var req dto.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Event == "" {
		return apperrors.NewMissingParameter("Missing required parameters", map[string]any{"required": []string{"event"}})
	}

	var (
		applied bool
		err     error
	)
	switch req.Event {
	case dto.ChainEventTicketMinted:
		applied, err = h.ticketMinted(c, req.Data)
	case dto.ChainEventTicketScanned:
		applied, err = h.ticketScanned(c, req.Data)
	case dto.ChainEventRewardUnlocked:
		applied, err = h.rewardUnlocked(c, req.Data)
	default:
		return apperrors.NewUnknownEvent(req.Event)
	}
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("event", req.Event), zap.Bool("applied", applied)}
	if subject, ok := auth.SubjectFromContext(c); ok {
		fields = append(fields, zap.String("relay", subject))
	}
	h.logger.Info("chain event processed", fields...)
	return c.JSON(dto.WebhookResponse{Success: true, Message: "Webhook processed", Applied: applied})
}

func (h *WebhookHandler) ticketMinted(c *fiber.Ctx, raw json.RawMessage) (bool, error) {
	var data dto.TicketMintedData
	if err := decodeData(raw, &data); err != nil {
		return false, err
	}
	if data.QRCode == "" {
		return false, apperrors.NewMissingParameter("Missing required parameters", map[string]any{
			"required": []string{"tokenId", "eventId", "holder", "qrCode"},
			"hint":     "TicketMinted logs carry no qrCode; read it from the contract's getTicketInfo(tokenId) before relaying",
		})
	}
	_, err := h.service.MintTicket(c.UserContext(), service.MintInput{
		TicketID: data.TokenID.String(),
		EventID:  data.EventID.String(),
		Holder:   data.Holder,
		QRSecret: data.QRCode,
	})
	if apperrors.HasCode(err, apperrors.CodeAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

func (h *WebhookHandler) ticketScanned(c *fiber.Ctx, raw json.RawMessage) (bool, error) {
	var data dto.TicketScannedData
	if err := decodeData(raw, &data); err != nil {
		return false, err
	}
	_, applied, err := h.service.RecordChainScan(c.UserContext(), data.TokenID.String(), data.Scanner)
	return applied, err
}

func (h *WebhookHandler) rewardUnlocked(c *fiber.Ctx, raw json.RawMessage) (bool, error) {
	var data dto.RewardUnlockedData
	if err := decodeData(raw, &data); err != nil {
		return false, err
	}
	_, applied, err := h.service.RecordRewardUnlock(c.UserContext(), data.TokenID.String(), data.Holder)
	return applied, err
}

func decodeData(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return apperrors.NewMissingParameter("Missing required parameters", map[string]any{"required": []string{"data"}})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewValidationError("invalid event data", nil)
	}
	return nil
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nftix/ticket-lifecycle/internal/api/dto"
	"github.com/nftix/ticket-lifecycle/internal/service"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// LifecycleHandler exposes ticket scans, reward claims and ledger queries.
type LifecycleHandler struct {
	service *service.LifecycleService
}

// NewLifecycleHandler constructs handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{service: lifecycle}
}

// ValidateTicket POST /validateTicket.
func (h *LifecycleHandler) ValidateTicket(c *fiber.Ctx) error {
	var req dto.ValidateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ValidateScan(c.UserContext(), req.TokenID.String(), req.QRCode, req.ScannerAddress)
	if err != nil {
		return err
	}
	return c.JSON(dto.ValidateTicketResponse{
		Success: true,
		Message: "Ticket validated successfully",
		TicketInfo: dto.TicketInfo{
			TokenID: ticket.ID,
			EventID: ticket.EventID,
			Holder:  ticket.Holder,
			State:   ticket.State,
		},
	})
}

// GetUserTickets GET /getUserTickets?userAddress=.
func (h *LifecycleHandler) GetUserTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListHolderTickets(c.UserContext(), c.Query("userAddress"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(dto.UserTicketsResponse{Tickets: items})
}

// GetTicket GET /tickets/:tokenId.
func (h *LifecycleHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("tokenId"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// ProcessLoyaltyReward POST /processLoyaltyReward.
func (h *LifecycleHandler) ProcessLoyaltyReward(c *fiber.Ctx) error {
	var req dto.LoyaltyRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reward, err := h.service.ClaimReward(c.UserContext(), req.AttendeeAddress, req.EventID.String(), req.IsEarlyBird)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoyaltyRewardResponse{
		Success: true,
		Message: "Loyalty reward processed",
		Reward:  dto.NewRewardBreakdown(reward),
	})
}

// GetEventStats GET /getEventStats?eventId=.
func (h *LifecycleHandler) GetEventStats(c *fiber.Ctx) error {
	stats, err := h.service.EventStats(c.UserContext(), c.Query("eventId"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewEventStatsResponse(stats))
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/service"
)

// AnalyticsHandler exposes attendance figures.
type AnalyticsHandler struct {
	ledger *service.LedgerService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(ledger *service.LedgerService) *AnalyticsHandler {
	return &AnalyticsHandler{ledger: ledger}
}

// Summary GET /analytics/summary.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.ledger.Summary(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Checkins GET /analytics/checkins lists the ledger.
func (h *AnalyticsHandler) Checkins(c *fiber.Ctx) error {
	entries, err := h.ledger.ListAll(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{"id": e.ID, "ticket_id": e.TicketID, "checked_in_at": e.At})
	}
	return c.JSON(fiber.Map{"data": items})
}

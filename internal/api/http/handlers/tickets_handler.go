package handlers

import (
	"bytes"
	"image/png"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/api/dto"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/scanner"
	"github.com/spec-kit/gate-checkin/internal/service"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

const qrSize = 320

// TicketsHandler manages registration and ticket lookup endpoints.
type TicketsHandler struct {
	service *service.RegistrationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(registrations *service.RegistrationService) *TicketsHandler {
	return &TicketsHandler{service: registrations}
}

// Register POST /registrations.
func (h *TicketsHandler) Register(c *fiber.Ctx) error {
	var req dto.CreateRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reg, err := h.service.Create(c.UserContext(), auth.PrincipalFromContext(c), service.RegistrationInput{
		EventID:    req.EventID,
		Name:       req.Name,
		Email:      req.Email,
		TicketType: req.TicketType,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(reg)})
}

// ListTickets GET /tickets. Without ?email the caller's own tickets are returned.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	p := auth.PrincipalFromContext(c)
	email := strings.TrimSpace(c.Query("email"))

	var (
		regs []domain.Registration
		err  error
	)
	if email == "" {
		regs, err = h.service.ListOwn(c.UserContext(), p)
	} else {
		regs, err = h.service.FindByEmail(c.UserContext(), p, email)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(regs)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	reg, err := h.service.FindByTicketID(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(reg)})
}

// TicketQR GET /tickets/:id/qr renders the identifier as a PNG QR code.
func (h *TicketsHandler) TicketQR(c *fiber.Ctx) error {
	reg, err := h.service.FindByTicketID(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	img, err := scanner.Encode(reg.TicketID, qrSize)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/api/dto"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/scanner"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// CodeCameraUnavailable is returned when the gate camera cannot be opened.
const CodeCameraUnavailable = "CAMERA_UNAVAILABLE"

// ScannerHandler drives the gate scanner session.
type ScannerHandler struct {
	manager   *scanner.Manager
	maxPixels int
}

// NewScannerHandler constructs handler. Uploaded frames above maxPixels are
// rejected before decoding.
func NewScannerHandler(manager *scanner.Manager, maxPixels int) *ScannerHandler {
	return &ScannerHandler{manager: manager, maxPixels: maxPixels}
}

// StartSession POST /scanner/session.
func (h *ScannerHandler) StartSession(c *fiber.Ctx) error {
	p := auth.PrincipalFromContext(c)
	session, err := h.manager.Start(c.UserContext(), p)
	if err != nil {
		return scannerError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ScannerSessionResponse{
		State:    string(session.State()),
		Operator: p.Email,
	}})
}

// StopSession DELETE /scanner/session.
func (h *ScannerHandler) StopSession(c *fiber.Ctx) error {
	if err := h.manager.Stop(auth.PrincipalFromContext(c)); err != nil {
		return scannerError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// SubmitCode POST /scanner/codes accepts a manually entered identifier.
func (h *ScannerHandler) SubmitCode(c *fiber.Ctx) error {
	var req dto.ScanCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.manager.Session(auth.PrincipalFromContext(c))
	if err != nil {
		return scannerError(err)
	}
	result, err := session.Submit(c.UserContext(), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scanResponse(result)})
}

// SubmitFrame POST /scanner/frames accepts one camera image as multipart field "frame".
func (h *ScannerHandler) SubmitFrame(c *fiber.Ctx) error {
	session, err := h.manager.Session(auth.PrincipalFromContext(c))
	if err != nil {
		return scannerError(err)
	}

	header, err := c.FormFile("frame")
	if err != nil {
		return apperrors.NewValidationError("frame image required", map[string]any{"frame": "required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable frame", nil)
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return apperrors.NewValidationError("unreadable frame", nil)
	}

	frame, err := scanner.ReadFrame(data, h.maxPixels)
	switch {
	case errors.Is(err, scanner.ErrFrameTooLarge):
		return apperrors.NewValidationError("frame too large", map[string]any{"frame": "max_pixels"})
	case err != nil:
		return apperrors.NewValidationError("unsupported image format", map[string]any{"frame": "png or jpeg"})
	}

	result, err := session.SubmitFrame(c.UserContext(), frame)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scanResponse(result)})
}

func scanResponse(r scanner.Result) dto.ScanResponse {
	return dto.ScanResponse{
		Outcome:    string(r.Outcome),
		Code:       r.Code,
		At:         r.At,
		Redemption: dto.NewRedemptionResponse(r.Redemption),
	}
}

func scannerError(err error) error {
	switch {
	case errors.Is(err, scanner.ErrSessionActive):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, scanner.ErrNoSession):
		return apperrors.NewConflict(err.Error(), map[string]any{"hint": "start a scanner session first"})
	case errors.Is(err, scanner.ErrCameraUnavailable):
		return apperrors.NewDomainError(CodeCameraUnavailable, err.Error(), http.StatusServiceUnavailable, nil)
	default:
		return err
	}
}

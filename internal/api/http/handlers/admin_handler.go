package handlers

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/service"
)

// AdminHandler exposes data management for organizers.
type AdminHandler struct {
	snapshots     *service.SnapshotService
	registrations *service.RegistrationService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(snapshots *service.SnapshotService, registrations *service.RegistrationService) *AdminHandler {
	return &AdminHandler{snapshots: snapshots, registrations: registrations}
}

// ExportSnapshot GET /admin/snapshot.
func (h *AdminHandler) ExportSnapshot(c *fiber.Ctx) error {
	snap, err := h.snapshots.Export(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="gate-snapshot-%d.json"`, snap.ExportedAt))
	return c.JSON(snap)
}

// ImportSnapshot PUT /admin/snapshot replaces the collections present in the body.
func (h *AdminHandler) ImportSnapshot(c *fiber.Ctx) error {
	snap, err := service.DecodeSnapshot(bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	if err := h.snapshots.Import(c.UserContext(), auth.PrincipalFromContext(c), snap); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"events":        len(snap.Events),
		"registrations": len(snap.Registrations),
		"checkins":      len(snap.Checkins),
		"announcements": len(snap.Announcements),
	}})
}

// RegistrationsCSV GET /admin/registrations.csv.
func (h *AdminHandler) RegistrationsCSV(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.snapshots.WriteRegistrationsCSV(c.UserContext(), auth.PrincipalFromContext(c), &buf); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="registrations.csv"`)
	return c.Send(buf.Bytes())
}

// Reconcile POST /admin/reconcile repairs checked-in flags from the ledger.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	repaired, err := h.registrations.Reconcile(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"repaired": repaired}})
}

package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/persistence"
	"github.com/spec-kit/gate-checkin/internal/scanner"
)

type testServer struct {
	app       *fiber.App
	container *Container
	clock     *clock.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{
		App:   config.AppConfig{Name: "gate-checkin", Version: "test"},
		Store: config.StoreConfig{Driver: persistence.DriverSQLite, Path: filepath.Join(t.TempDir(), "gate.db")},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
			OrganizerInviteCode:   "INVITE",
			DefaultOrganizerEmail: "admin@campus.test",
			DefaultOrganizerName:  "Admin",
			DefaultOrganizerPass:  "Admin@123",
		},
		Scanner: config.ScannerConfig{DebounceMS: 2000, DecodeTimeoutMS: 5000, DebounceBackend: "memory"},
	}

	db, err := persistence.Open(ctx, cfg.Store, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, persistence.RunMigrations(ctx, db, logger))

	clk := clock.NewFake(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	c := New(cfg, db, Options{Clock: clk, Logger: logger})
	t.Cleanup(c.Close)
	require.NoError(t, c.Seed(ctx))

	return &testServer{app: c.HTTPApp(), container: c, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.send(t, req, token)
}

func (s *testServer) send(t *testing.T, req *http.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return dig(body, "data", "auth", "token").(string)
}

func (s *testServer) signUp(t *testing.T, name, email string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return dig(body, "data", "auth", "token").(string)
}

func (s *testServer) createEvent(t *testing.T, token, title string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/events", token, map[string]any{
		"title": title, "date": "2025-03-20", "start_time": "10:00", "end_time": "12:00", "capacity": 50,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return dig(body, "data", "id").(string)
}

func (s *testServer) register(t *testing.T, token, eventID string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/registrations", token, map[string]any{
		"event_id": eventID, "ticket_type": "General",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return dig(body, "data", "ticket_id").(string)
}

func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		next, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = next[k]
	}
	return cur
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", dig(body, "dependencies", "sqlite"))
}

func TestGuestAccess(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/events", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", dig(body, "error", "code"))

	status, body = s.do(t, http.MethodGet, "/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", dig(body, "error", "code"))

	status, _ = s.do(t, http.MethodGet, "/events", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/health/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", dig(body, "error", "code"))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	token := s.signUp(t, "Ada", "ada@campus.test")
	status, body := s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "attendee", dig(body, "data", "user", "role"))

	status, body = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ada", "email": "ADA@campus.test", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", dig(body, "error", "code"))

	status, _ = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Eve", "email": "eve@campus.test", "password": "secret1", "role": "organizer",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Bob", "email": "bob@campus.test", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", dig(body, "error", "code"))

	status, _ = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@campus.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/auth/login", token, map[string]string{"email": "ada@campus.test", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGateFlow(t *testing.T) {
	s := newTestServer(t)
	org := s.login(t, "admin@campus.test", "Admin@123")
	ada := s.signUp(t, "Ada", "ada@campus.test")

	eventID := s.createEvent(t, org, "Keynotes")
	status, _ := s.do(t, http.MethodPost, "/events", ada, map[string]any{"title": "Nope", "date": "2025-03-20"})
	assert.Equal(t, http.StatusForbidden, status)

	ticketID := s.register(t, ada, eventID)

	status, body := s.do(t, http.MethodGet, "/tickets", ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, http.MethodGet, "/tickets/"+ticketID, ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "REGISTERED", dig(body, "data", "state"))

	status, _ = s.do(t, http.MethodPost, "/scanner/codes", ada, map[string]string{"code": ticketID})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPost, "/scanner/codes", org, map[string]string{"code": ticketID})
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = s.do(t, http.MethodPost, "/scanner/session", org, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "scanning", dig(body, "data", "state"))

	status, body = s.do(t, http.MethodPost, "/scanner/codes", org, map[string]string{"code": ticketID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "success", dig(body, "data", "outcome"))
	assert.Equal(t, "Ada", dig(body, "data", "redemption", "holder"))
	assert.Equal(t, "Keynotes", dig(body, "data", "redemption", "event", "title"))

	status, body = s.do(t, http.MethodPost, "/scanner/codes", org, map[string]string{"code": ticketID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "suppressed", dig(body, "data", "outcome"))

	s.clock.Advance(3 * time.Second)
	status, body = s.do(t, http.MethodPost, "/scanner/codes", org, map[string]string{"code": ticketID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "duplicate", dig(body, "data", "outcome"))
	assert.NotNil(t, dig(body, "data", "redemption", "checked_in_at"))

	s.clock.Advance(3 * time.Second)
	status, body = s.do(t, http.MethodPost, "/scanner/codes", org, map[string]string{"code": "T-NOPE-000000"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unknown", dig(body, "data", "outcome"))

	status, body = s.do(t, http.MethodGet, "/tickets/"+ticketID, ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "REDEEMED", dig(body, "data", "state"))

	status, body = s.do(t, http.MethodGet, "/analytics/summary", org, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, dig(body, "data", "total_check_ins"))
	assert.EqualValues(t, 1, dig(body, "data", "total_registrations"))

	status, body = s.do(t, http.MethodGet, "/analytics/checkins", org, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.do(t, http.MethodDelete, "/scanner/session", org, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodDelete, "/scanner/session", org, nil)
	assert.Equal(t, http.StatusConflict, status)

	metrics := s.container.Metrics.Snapshot()
	assert.EqualValues(t, 1, metrics.Scans["ticket_redeemed"])
	assert.EqualValues(t, 1, metrics.Scans["duplicate_scan"])
	assert.EqualValues(t, 1, metrics.Scans["unknown_scan"])
	assert.EqualValues(t, 1, metrics.Scans["suppressed"])
}

func TestTicketQRAndFrameUpload(t *testing.T) {
	s := newTestServer(t)
	org := s.login(t, "admin@campus.test", "Admin@123")
	ada := s.signUp(t, "Ada", "ada@campus.test")
	bob := s.signUp(t, "Bob", "bob@campus.test")
	ticketID := s.register(t, ada, s.createEvent(t, org, "Workshops"))

	status, _ := s.do(t, http.MethodGet, "/tickets/"+ticketID+"/qr", bob, nil)
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodGet, "/tickets/"+ticketID+"/qr", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+ada)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))

	pngBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	text, ok := scanner.NewQRDecoder().DecodeImage(img)
	require.True(t, ok)
	assert.Equal(t, ticketID, text)

	status, body := s.do(t, http.MethodPost, "/scanner/session", org, nil)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.uploadFrame(t, org, pngBytes)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "success", dig(body, "data", "outcome"))
	assert.Equal(t, ticketID, dig(body, "data", "code"))
}

func TestFrameUpload_RejectsOversizedImage(t *testing.T) {
	s := newTestServer(t)
	org := s.login(t, "admin@campus.test", "Admin@123")
	status, body := s.do(t, http.MethodPost, "/scanner/session", org, nil)
	require.Equal(t, http.StatusCreated, status, body)

	// Uniform gray compresses to a few kilobytes but declares 9M pixels.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3000, 3000))))

	status, body = s.uploadFrame(t, org, buf.Bytes())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", dig(body, "error", "code"))
	assert.Equal(t, "max_pixels", dig(body, "error", "details", "frame"))

	status, body = s.uploadFrame(t, org, []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "png or jpeg", dig(body, "error", "details", "frame"))
}

func (s *testServer) uploadFrame(t *testing.T, token string, data []byte) (int, map[string]any) {
	t.Helper()
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/scanner/frames", &form)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	return s.send(t, req, token)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	org := s.login(t, "admin@campus.test", "Admin@123")
	ada := s.signUp(t, "Ada", "ada@campus.test")
	ticketID := s.register(t, ada, s.createEvent(t, org, "Keynotes"))

	status, _ := s.do(t, http.MethodGet, "/admin/snapshot", ada, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, snapshot := s.do(t, http.MethodGet, "/admin/snapshot", org, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, snapshot["registrations"], 1)

	snapshot["registrations"] = []any{}
	status, body := s.do(t, http.MethodPut, "/admin/snapshot", org, snapshot)
	require.Equal(t, http.StatusOK, status, body)
	status, _ = s.do(t, http.MethodGet, "/tickets/"+ticketID, org, nil)
	assert.Equal(t, http.StatusNotFound, status)

	req := httptest.NewRequest(http.MethodPut, "/admin/snapshot", bytes.NewBufferString("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	status, body = s.send(t, req, org)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", dig(body, "error", "code"))

	s.register(t, ada, dig(snapshot, "events").([]any)[0].(map[string]any)["id"].(string))
	csvReq := httptest.NewRequest(http.MethodGet, "/admin/registrations.csv", nil)
	csvReq.Header.Set(fiber.HeaderAuthorization, "Bearer "+org)
	resp, err := s.app.Test(csvReq, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "TicketId", rows[0][0])

	status, body = s.do(t, http.MethodPost, "/admin/reconcile", org, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, dig(body, "data", "repaired"))
}

func TestAnnouncements(t *testing.T) {
	s := newTestServer(t)
	org := s.login(t, "admin@campus.test", "Admin@123")
	ada := s.signUp(t, "Ada", "ada@campus.test")

	status, _ := s.do(t, http.MethodPost, "/announcements", ada, map[string]string{"title": "Hi", "body": "there"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/announcements", org, map[string]string{"title": "Doors", "body": "Gate B opens at 9"})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(t, http.MethodGet, "/announcements", ada, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

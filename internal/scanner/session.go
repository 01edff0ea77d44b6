package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/debounce"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/observability"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
)

// Outcome of one submitted decode.
type Outcome string

const (
	OutcomeSuccess   = Outcome(domain.OutcomeSuccess)
	OutcomeDuplicate = Outcome(domain.OutcomeDuplicate)
	OutcomeUnknown   = Outcome(domain.OutcomeUnknown)
	// OutcomeSuppressed means the decode fell inside the debounce window and was dropped.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeNone means the frame held no readable code.
	OutcomeNone Outcome = "none"
)

// Default timings.
const (
	DefaultPollInterval  = 400 * time.Millisecond
	DefaultDecodeTimeout = 250 * time.Millisecond
)

// Redeemer is the redemption state machine.
type Redeemer interface {
	Redeem(ctx context.Context, p *auth.Principal, ticketID string) (domain.RedemptionResult, error)
}

// Result is what the gate shows the operator.
type Result struct {
	Outcome    Outcome                  `json:"outcome"`
	Code       string                   `json:"code,omitempty"`
	Redemption *domain.RedemptionResult `json:"-"`
	At         time.Time                `json:"at"`
}

// SessionConfig wires a session.
type SessionConfig struct {
	Principal     *auth.Principal
	Decoder       Decoder
	Window        debounce.Window
	Redeemer      Redeemer
	Camera        CameraSource // nil for manual entry only
	PollInterval  time.Duration
	DecodeTimeout time.Duration
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	OnResult      func(Result)
}

// Session is one operator's scanning run at a gate.
type Session struct {
	cfg SessionConfig

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds an idle session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.DecodeTimeout <= 0 {
		cfg.DecodeTimeout = DefaultDecodeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewQRDecoder()
	}
	if cfg.Window == nil {
		cfg.Window = debounce.NewMemory(cfg.Clock, debounce.DefaultWindow)
	}
	return &Session{cfg: cfg, state: StateIdle}
}

// Principal returns the operator who owns the session.
func (s *Session) Principal() *auth.Principal {
	return s.cfg.Principal
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start acquires the camera, if any, and begins polling. When the camera
// cannot be acquired the error wraps ErrCameraUnavailable and the session
// stays idle, so Start may be retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		return nil
	}

	var cam Camera
	if s.cfg.Camera != nil {
		var err error
		cam, err = s.cfg.Camera(ctx)
		if err != nil {
			s.cfg.Logger.Warn("camera acquisition failed", zap.Error(err))
			if !errors.Is(err, ErrCameraUnavailable) {
				err = errors.Join(ErrCameraUnavailable, err)
			}
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateScanning

	if cam == nil {
		close(s.done)
		return nil
	}
	go s.loop(loopCtx, cam, s.done)
	s.cfg.Logger.Info("scanner started", zap.Duration("interval", s.cfg.PollInterval))
	return nil
}

// Stop halts polling and releases the camera. Safe to call in any state.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateIdle
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.cfg.Logger.Info("scanner stopped")
}

// loop runs ticks back to back; a tick that overruns the interval causes
// the ticker to drop the missed ticks instead of queueing them.
func (s *Session) loop(ctx context.Context, cam Camera, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := cam.Close(); err != nil {
			s.cfg.Logger.Warn("camera close failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, cam)
		}
	}
}

func (s *Session) tick(ctx context.Context, cam Camera) {
	frame, err := cam.Frame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.cfg.Logger.Debug("frame unavailable", zap.Error(err))
		}
		return
	}
	code, ok := s.decode(ctx, frame)
	if !ok {
		return
	}
	if _, err := s.Submit(ctx, code); err != nil && ctx.Err() == nil {
		s.cfg.Logger.Error("scan submit failed", zap.Error(err))
	}
}

// decode bounds a single decode by DecodeTimeout. An overrunning decode is
// abandoned and its late result discarded.
func (s *Session) decode(ctx context.Context, frame Frame) (string, bool) {
	type decoded struct {
		text string
		ok   bool
	}
	ch := make(chan decoded, 1)
	go func() {
		text, ok := s.cfg.Decoder.Decode(frame)
		ch <- decoded{text: text, ok: ok}
	}()

	timer := time.NewTimer(s.cfg.DecodeTimeout)
	defer timer.Stop()
	select {
	case d := <-ch:
		return d.text, d.ok
	case <-timer.C:
		s.cfg.Logger.Debug("decode abandoned", zap.Duration("timeout", s.cfg.DecodeTimeout))
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// Submit debounces a decoded code and redeems it. Suppressed codes never
// reach the redemption state machine.
func (s *Session) Submit(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	now := s.cfg.Clock.Now()
	if code == "" {
		return s.deliver(Result{Outcome: OutcomeNone, At: now}), nil
	}

	allowed, err := s.cfg.Window.Allow(ctx)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return s.deliver(Result{Outcome: OutcomeSuppressed, Code: code, At: now}), nil
	}

	redemption, err := s.cfg.Redeemer.Redeem(ctx, s.cfg.Principal, code)
	if err != nil {
		return Result{}, err
	}
	return s.deliver(Result{
		Outcome:    Outcome(redemption.Outcome),
		Code:       code,
		Redemption: &redemption,
		At:         now,
	}), nil
}

// SubmitFrame decodes one frame and submits its code.
func (s *Session) SubmitFrame(ctx context.Context, frame Frame) (Result, error) {
	code, ok := s.decode(ctx, frame)
	if !ok {
		return s.deliver(Result{Outcome: OutcomeNone, At: s.cfg.Clock.Now()}), nil
	}
	return s.Submit(ctx, code)
}

func (s *Session) deliver(r Result) Result {
	switch r.Outcome {
	case OutcomeSuppressed, OutcomeNone:
		s.cfg.Metrics.RecordScan(string(r.Outcome))
	}
	if s.cfg.OnResult != nil {
		s.cfg.OnResult(r)
	}
	return r
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// storageError marks a failed persistence call. The caller's change was not applied.
func storageError(op string, err error) error {
	return apperrors.NewStorageError(fmt.Errorf("%s: %w", op, err))
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func actorOf(p *auth.Principal) events.Actor {
	if p == nil {
		return events.Actor{Role: auth.Guest().Role}
	}
	return events.Actor{UserID: p.UserID, Role: p.EffectiveRole()}
}

type publisher struct {
	dispatcher events.Dispatcher
	clock      clock.Clock
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock.Now()
	}
	_ = p.dispatcher.Publish(ctx, event)
}

package worker

import (
	"context"

	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/observability"
	"github.com/spec-kit/gate-checkin/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartScanMetricsWorker counts redemption outcomes published on the dispatcher.
func StartScanMetricsWorker(dispatcher events.Dispatcher, metrics *observability.Metrics) {
	if dispatcher == nil || metrics == nil {
		return
	}
	count := func(_ context.Context, event events.Event) error {
		metrics.RecordScan(string(event.Type))
		return nil
	}
	dispatcher.Subscribe(events.EventTicketRedeemed, count)
	dispatcher.Subscribe(events.EventDuplicateScan, count)
	dispatcher.Subscribe(events.EventUnknownScan, count)
}

package notification

import (
	"context"
	"log/slog"

	"lavka/internal/service"
)

// LogNotifier пишет событие в журнал вместо брокера.
// Используется, когда AMQP_URL не задан.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ service.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Send(_ context.Context, ev service.NotificationEvent) error {
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("order placed",
		"order_id", ev.OrderID,
		"order_uuid", ev.OrderUUID,
		"customer", ev.CustomerName,
		"total", ev.TotalAmount)
	return nil
}

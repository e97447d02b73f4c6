package notifier

import (
	"context"
	"fmt"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/metrics"
)

type Notification struct {
	Kind    string // metrics.WarningNotification or metrics.DeletionNotification
	Queue   string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(notification Notification, ctx context.Context) error
}

func NewWarningNotification(to string, queueName string, exchange string) Notification {
	return Notification{
		Kind:    metrics.WarningNotification,
		Queue:   queueName,
		To:      to,
		Subject: common.WarningEmailSubject,
		Body: fmt.Sprintf(
			"Warning. Your queue '%s' on the exchange '%s' is overgrowing.\nMake sure your clients are running correctly.",
			queueName, exchangeOrUnknown(exchange),
		),
	}
}

func NewDeletionNotification(to string, queueName string, exchange string) Notification {
	return Notification{
		Kind:    metrics.DeletionNotification,
		Queue:   queueName,
		To:      to,
		Subject: common.DeletionEmailSubject,
		Body: fmt.Sprintf(
			"Your queue '%s' on the exchange '%s' has been deleted because it exceeded the unread messages limit.\nMake sure your clients are running correctly and delete unused queues.",
			queueName, exchangeOrUnknown(exchange),
		),
	}
}

func exchangeOrUnknown(exchange string) string {
	if exchange == "" {
		return common.UnknownExchange
	}
	return exchange
}

// Package notify turns outbox events into emails and realtime pushes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/Niiaks/ticketcore/internal/kafka"
	"github.com/Niiaks/ticketcore/internal/metrics"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/Niiaks/ticketcore/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Directory resolves user ids to contact details.
type Directory interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type Notifier struct {
	mailer      Mailer
	pusher      Pusher
	users       Directory
	frontendURL string
	log         *zerolog.Logger
}

// NewNotifier wires the delivery channels. A nil mailer or pusher disables
// that channel.
func NewNotifier(mailer Mailer, pusher Pusher, users Directory, frontendURL string, log *zerolog.Logger) *Notifier {
	return &Notifier{mailer: mailer, pusher: pusher, users: users, frontendURL: frontendURL, log: log}
}

// Handle is the kafka.Handler for every notification topic. Returning an
// error makes the consumer retry the record.
func (n *Notifier) Handle(ctx context.Context, msg *kafka.Message) error {
	log := n.log.With().Str("event_type", msg.EventType()).Int64("offset", msg.Offset).
		Str("correlation_id", msg.Headers[kafka.HeaderCorrelationID]).Logger()

	switch msg.EventType() {
	case kafka.EventOrderCompleted:
		var e types.OrderCompletedEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return errors.Wrap(err, "decode order.completed")
		}
		return n.orderCompleted(ctx, &log, &e)
	case kafka.EventPayoutCompleted:
		var e types.PayoutEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return errors.Wrap(err, "decode payout.completed")
		}
		return n.email(ctx, &log, e.SellerID, "Your payout has been sent",
			fmt.Sprintf("<p>A payout of <strong>%s</strong> is on its way to your account.</p>", e.Amount))
	case kafka.EventDisputeOpened, kafka.EventDisputeRefunded, kafka.EventDisputeClosed:
		var e types.DisputeEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return errors.Wrap(err, "decode dispute event")
		}
		return n.dispute(ctx, &log, msg.EventType(), &e)
	case kafka.EventAlertTriggered:
		var e types.AlertTriggeredEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return errors.Wrap(err, "decode alert.triggered")
		}
		return n.alertTriggered(ctx, &log, &e)
	default:
		log.Debug().Msg("no notification for event")
		return nil
	}
}

func (n *Notifier) orderCompleted(ctx context.Context, log *zerolog.Logger, e *types.OrderCompletedEvent) error {
	n.push(ctx, log, e.BuyerID, map[string]any{
		"type":     "order_completed",
		"order_id": e.OrderID,
		"event_id": e.EventID,
	})

	orderURL := fmt.Sprintf("%s/order/%s", n.frontendURL, e.OrderID)
	buyerBody := fmt.Sprintf(`<h1>Your tickets are confirmed</h1>
<p>Order <strong>%s</strong> total <strong>%s</strong>.</p>
<p>Show this code at the gate:</p><pre>%s</pre>
<p><a href="%s">View your order</a></p>`,
		html.EscapeString(e.OrderID), e.TotalAmount, html.EscapeString(e.QRPayload), html.EscapeString(orderURL))
	if err := n.email(ctx, log, e.BuyerID, "Your order is confirmed", buyerBody); err != nil {
		return err
	}

	sellerBody := fmt.Sprintf("<p>Your ticket sold for <strong>%s</strong>. The amount is now in your pending balance.</p>", e.TicketPrice)
	return n.email(ctx, log, e.SellerID, "You sold a ticket", sellerBody)
}

func (n *Notifier) dispute(ctx context.Context, log *zerolog.Logger, eventType string, e *types.DisputeEvent) error {
	var buyerSubject, sellerSubject, body string
	switch eventType {
	case kafka.EventDisputeOpened:
		buyerSubject, sellerSubject = "We received your dispute", "A buyer opened a dispute"
		body = fmt.Sprintf("<p>Order %s is under review. %s is held until it is settled.</p>", html.EscapeString(e.OrderID), e.Amount)
	case kafka.EventDisputeRefunded:
		buyerSubject, sellerSubject = "Your refund is on its way", "A dispute was settled with a refund"
		body = fmt.Sprintf("<p>Order %s was refunded (%s).</p><p>%s</p>", html.EscapeString(e.OrderID), e.Amount, html.EscapeString(e.Resolution))
	default:
		buyerSubject, sellerSubject = "Your dispute was closed", "A dispute was closed in your favour"
		body = fmt.Sprintf("<p>The dispute on order %s was closed.</p><p>%s</p>", html.EscapeString(e.OrderID), html.EscapeString(e.Resolution))
	}

	if err := n.email(ctx, log, e.BuyerID, buyerSubject, body); err != nil {
		return err
	}
	return n.email(ctx, log, e.SellerID, sellerSubject, body)
}

func (n *Notifier) alertTriggered(ctx context.Context, log *zerolog.Logger, e *types.AlertTriggeredEvent) error {
	n.push(ctx, log, e.UserID, map[string]any{
		"type":           "price_alert",
		"alert_id":       e.AlertID,
		"event_id":       e.EventID,
		"current_lowest": e.CurrentLowest,
	})

	eventURL := fmt.Sprintf("%s/event/%s", n.frontendURL, e.EventID)
	body := fmt.Sprintf(`<p>Tickets are now available from <strong>%s</strong>, at or below your target of %s.</p>
<p><a href="%s">Get them before they go</a></p>`, e.CurrentLowest, e.TargetPrice, html.EscapeString(eventURL))
	return n.email(ctx, log, e.UserID, "Price drop on an event you follow", body)
}

func (n *Notifier) email(ctx context.Context, log *zerolog.Logger, userID, subject, body string) error {
	if n.mailer == nil {
		metrics.Notifications.WithLabelValues("email", "disabled").Inc()
		return nil
	}

	u, err := n.users.GetUser(ctx, userID)
	if err != nil || u.Email == "" {
		metrics.Notifications.WithLabelValues("email", "no_address").Inc()
		log.Warn().Err(err).Str("user_id", userID).Msg("no email address for user, skipping")
		return nil
	}

	if err := n.mailer.Send(ctx, u.Email, subject, body); err != nil {
		metrics.Notifications.WithLabelValues("email", "error").Inc()
		log.Error().Err(err).Str("user_id", userID).Str("subject", subject).Msg("failed to send email")
		return err
	}
	metrics.Notifications.WithLabelValues("email", "sent").Inc()
	log.Info().Str("user_id", userID).Str("subject", subject).Msg("email sent")
	return nil
}

func (n *Notifier) push(ctx context.Context, log *zerolog.Logger, userID string, message map[string]any) {
	if n.pusher == nil {
		return
	}
	if err := n.pusher.Push(ctx, userID, message); err != nil {
		metrics.Notifications.WithLabelValues("push", "error").Inc()
		log.Warn().Err(err).Str("user_id", userID).Msg("realtime push failed")
		return
	}
	metrics.Notifications.WithLabelValues("push", "sent").Inc()
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

const dedupTTL = 24 * time.Hour

// Notifier delivers customer notifications for order events.
type Notifier interface {
	OrderPlaced(ctx context.Context, user *model.User, order *model.Order) error
	OrderStatusChanged(ctx context.Context, user *model.User, order *model.Order, previous model.OrderStatus) error
}

// errPermanent marks failures that a redelivery cannot fix.
var errPermanent = errors.New("permanent failure")

type NotificationWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewNotificationWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	redisClient *redis.Client,
	log *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(eventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notification worker started")
	return nil
}

func (w *NotificationWorker) Stop() { close(w.done) }

func (w *NotificationWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("event_id", event.ID, "type", event.Type, "order_id", event.OrderID)

	dedupKey := "order_event:" + event.ID.String()
	if w.redisClient != nil {
		exists, err := w.redisClient.Exists(ctx, dedupKey).Result()
		if err != nil {
			log.Error("check dedup key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if exists > 0 {
			log.Info("event already handled, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.handle(ctx, event); err != nil {
		metrics.Notifications.WithLabelValues(event.Type, "failed").Inc()
		log.Error("handle order event", "error", err)
		// permanent failures go to the DLQ, the rest are retried
		_ = msg.Nack(false, !errors.Is(err, errPermanent))
		return
	}

	if w.redisClient != nil {
		if err := w.redisClient.Set(ctx, dedupKey, "1", dedupTTL).Err(); err != nil {
			log.Error("set dedup key", "error", err)
		}
	}

	result := "sent"
	if w.notifier == nil {
		result = "skipped"
	}
	metrics.Notifications.WithLabelValues(event.Type, result).Inc()
	_ = msg.Ack(false)
	log.Info("order event handled")
}

func (w *NotificationWorker) handle(ctx context.Context, event model.OrderEvent) error {
	if event.Type != model.EventOrderPlaced && event.Type != model.EventOrderStatusChanged {
		return fmt.Errorf("%w: unknown event type %q", errPermanent, event.Type)
	}
	if w.notifier == nil {
		w.log.Debug("no notifier configured, dropping event", "event_id", event.ID)
		return nil
	}

	order, err := w.orderRepo.GetByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("%w: order %s not found", errPermanent, event.OrderID)
	}
	user, err := w.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %s not found", errPermanent, order.UserID)
	}

	// the event carries the status at publish time; the order may have moved on
	snapshot := *order
	snapshot.Status = event.Status

	switch event.Type {
	case model.EventOrderPlaced:
		err = w.notifier.OrderPlaced(ctx, user, &snapshot)
	default:
		err = w.notifier.OrderStatusChanged(ctx, user, &snapshot, event.PreviousStatus)
	}
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

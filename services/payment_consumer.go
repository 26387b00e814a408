package services

import (
	"context"
	"encoding/json"
	"errors"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentConsumer drives orders through the pending leg of the state machine
// from payment events: payment_succeeded moves pending to paid,
// payment_failed moves pending to cancelled.
type PaymentConsumer struct {
	reader *kafka.Reader
	orders *OrderService
	logger *zap.Logger
}

func NewPaymentConsumer(brokers []string, topic, groupID string, orders *OrderService, logger *zap.Logger) *PaymentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return &PaymentConsumer{reader: reader, orders: orders, logger: logger}
}

// Start consumes payment events until ctx is cancelled. Malformed messages
// and duplicate deliveries are logged and skipped, never retried.
func (pc *PaymentConsumer) Start(ctx context.Context) {
	pc.logger.Info("payment consumer started")

	for {
		m, err := pc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				pc.logger.Info("payment consumer stopped")
				return
			}
			pc.logger.Error("payment consumer read error", zap.Error(err))
			continue
		}

		var evt models.PaymentEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			pc.logger.Error("invalid payment event payload",
				zap.ByteString("payload", m.Value),
				zap.Error(err))
			continue
		}

		orderID, err := uuid.Parse(evt.OrderID)
		if err != nil {
			pc.logger.Error("payment event with bad order id",
				zap.String("order_id", evt.OrderID),
				zap.Error(err))
			continue
		}

		switch evt.Type {
		case "payment_succeeded":
			pc.apply(ctx, orderID, models.StatusPaid, "payment succeeded")
		case "payment_failed":
			pc.apply(ctx, orderID, models.StatusCancelled, "payment failed")
		default:
			pc.logger.Warn("unknown payment event type", zap.String("type", evt.Type))
		}
	}
}

func (pc *PaymentConsumer) apply(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, reason string) {
	// Payment events only ever move an order out of pending. Pinning the
	// source state means a late payment_failed cannot cancel an order that
	// payment_succeeded already moved to paid.
	_, err := pc.orders.TransitionFrom(ctx, orderID, models.StatusPending, target, "payment-service", reason)
	if err != nil {
		// A duplicate or out-of-order delivery lands here as a conflict or an
		// invalid transition: the order has already left pending, so no retry
		// can ever apply the event. Expected with at-least-once topics.
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, repository.ErrConcurrencyConflict) {
			pc.logger.Warn("stale payment event ignored",
				zap.String("order_id", orderID.String()),
				zap.String("target", string(target)),
				zap.Error(err))
			return
		}
		pc.logger.Error("failed to apply payment event",
			zap.String("order_id", orderID.String()),
			zap.String("target", string(target)),
			zap.Error(err))
		return
	}
	pc.logger.Info("payment event applied",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(target)))
}

func (pc *PaymentConsumer) Close() error {
	return pc.reader.Close()
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/aws"
	"checkout-service/kafka"
	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// CheckoutService converts a cart into an order: it re-validates every line
// against the catalog, snapshots prices, reserves stock and persists the
// order atomically, then clears the cart and emits events.
type CheckoutService struct {
	carts       repository.CartRepository
	orders      repository.OrderRepository
	catalog     Catalog
	producer    kafka.ProducerAPI
	snsClient   aws.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	catalog Catalog,
	producer kafka.ProducerAPI,
	snsClient aws.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:       carts,
		orders:      orders,
		catalog:     catalog,
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// Checkout places an order from the user's current cart. A non-empty
// idempotencyKey makes retries return the original order instead of placing
// a second one. On any failure the cart and inventory are left untouched.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, idempotencyKey string) (*models.Order, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	// A non-empty key is claimed with SET NX before any work happens, so
	// two concurrent checkouts carrying the same key cannot both place an
	// order. The claim is released again on every failure path.
	reservedKey := false
	if idempotencyKey != "" {
		order, claimed, err := s.claimIdempotencyKey(ctx, idempotencyKey)
		if err != nil || order != nil {
			return order, err
		}
		reservedKey = claimed
	}
	fail := func(err error) (*models.Order, error) {
		if reservedKey {
			if derr := s.carts.DeleteIdempotency(ctx, idempotencyKey); derr != nil {
				s.logger.Error("failed to release idempotency key",
					zap.String("user_id", userID),
					zap.Error(derr))
			}
		}
		return nil, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return fail(err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return fail(fmt.Errorf("user %s: %w", userID, ErrEmptyCart))
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	total := decimal.Zero
	for _, line := range cart.Items {
		info, err := s.catalog.VariantInfo(ctx, line.VariantID)
		if err != nil {
			return fail(err)
		}
		if !info.Active {
			return fail(fmt.Errorf("variant %s (%s): %w", line.VariantID, info.Name, ErrVariantUnavailable))
		}

		lineTotal := info.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, models.OrderItem{
			VariantID:  line.VariantID,
			Quantity:   line.Quantity,
			UnitPrice:  info.Price,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	order := &models.Order{
		OrderNumber: models.NewOrderNumber(),
		UserID:      uid,
		Status:      models.StatusPending,
		TotalAmount: total,
		OrderItems:  items,
		StatusHistory: []models.OrderStatusHistory{
			{
				ToStatus:  models.StatusPending,
				ChangedBy: userID,
				Notes:     "order created",
			},
		},
	}

	if err := s.orders.CreateWithReservation(ctx, order); err != nil {
		return fail(err)
	}

	// The order is committed from here on; cleanup failures are logged but
	// never surfaced as a checkout failure.
	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		s.logger.Error("failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}

	if idempotencyKey != "" {
		if err := s.carts.SetIdempotency(ctx, idempotencyKey, order.ID.String(), idempotencyTTL); err != nil {
			s.logger.Error("failed to record idempotency key",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}

	s.publishOrderCreated(ctx, order)

	return order, nil
}

// claimIdempotencyKey resolves a checkout key: it replays the committed
// order when the key has one, claims the key for this checkout when it is
// free, and reports a conflict when another checkout is still in flight.
func (s *CheckoutService) claimIdempotencyKey(ctx context.Context, key string) (*models.Order, bool, error) {
	existing, err := s.carts.GetIdempotency(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if order, err := s.replayIdempotency(ctx, key, existing); order != nil || err != nil {
		return order, false, err
	}

	claimed, err := s.carts.ReserveIdempotency(ctx, key, idempotencyTTL)
	if err != nil {
		return nil, false, err
	}
	if claimed {
		return nil, true, nil
	}

	// Lost the claim race: the winner either committed already or is still
	// working.
	existing, err = s.carts.GetIdempotency(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if order, err := s.replayIdempotency(ctx, key, existing); order != nil || err != nil {
		return order, false, err
	}
	return nil, false, fmt.Errorf("checkout with idempotency key already in flight: %w", repository.ErrConcurrencyConflict)
}

// replayIdempotency returns the committed order recorded under key, or
// (nil, nil) when the value is absent or still the in-flight marker.
func (s *CheckoutService) replayIdempotency(ctx context.Context, key, value string) (*models.Order, error) {
	if value == "" {
		return nil, nil
	}
	if value == repository.IdempotencyPending {
		return nil, fmt.Errorf("checkout with idempotency key already in flight: %w", repository.ErrConcurrencyConflict)
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		s.logger.Error("corrupt idempotency record",
			zap.String("value", value),
			zap.Error(err))
		return nil, nil
	}
	return s.orders.FindByID(ctx, orderID)
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *models.Order) {
	event := models.OrderCreatedEvent{
		EventType:   "order.created",
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		TotalAmount: order.TotalAmount.StringFixed(2),
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode order.created event", zap.Error(err))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, order.ID.String(), payload); err != nil {
			s.logger.Error("failed to publish order.created to kafka",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}

	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
			s.logger.Error("failed to publish order.created to sns",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
	}
}

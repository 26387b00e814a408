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
	"go.uber.org/zap"
)

// OrderResponse is a page of orders plus pagination metadata.
type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService serves order reads and drives the status state machine.
type OrderService struct {
	repo        repository.OrderRepository
	producer    kafka.ProducerAPI
	snsClient   aws.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

func NewOrderService(repo repository.OrderRepository, producer kafka.ProducerAPI, snsClient aws.SNSPublisher, snsTopicArn string, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:        repo,
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// GetUserOrders retrieves paginated orders for a specific user.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	orders, total, err := s.repo.FindByUserID(ctx, uid, page, limit)
	if err != nil {
		return nil, err
	}
	return paginated(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders across all users (admin only).
func (s *OrderService) GetAllOrders(ctx context.Context, page, limit int) (*OrderResponse, error) {
	orders, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return paginated(orders, total, page, limit), nil
}

// GetOrderByID retrieves one order scoped to its owner, with items and
// status history.
func (s *OrderService) GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.repo.FindByIDAndUserID(ctx, orderID, uid)
}

// Transition moves an order to target on behalf of actor, from whatever
// status the order currently holds. The check and the write are serialized
// by a compare-and-set, so two concurrent transitions cannot both win.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor, reason string) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, ErrInvalidTransition)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.TransitionFrom(ctx, orderID, order.Status, target, actor, reason)
}

// TransitionFrom moves an order to target only if its stored status still
// equals from. Callers whose authority is scoped to a source state (owner
// cancellation, payment events) pin from so a concurrent transition turns
// into ErrConcurrencyConflict instead of acting on the new state.
func (s *OrderService) TransitionFrom(ctx context.Context, orderID uuid.UUID, from, target models.OrderStatus, actor, reason string) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, ErrInvalidTransition)
	}
	if !from.CanTransitionTo(target) {
		return nil, fmt.Errorf("%s -> %s: %w", from, target, ErrInvalidTransition)
	}

	if err := s.repo.TransitionStatus(ctx, orderID, from, target, actor, reason); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publishStatusChanged(ctx, orderID, from, target, actor)

	return updated, nil
}

// CancelOwn lets the order's owner cancel it. Owners may only cancel while
// the order is still pending; anything later requires an admin. The cancel
// is pinned to the pending status, so a payment landing between the check
// and the write fails the compare-and-set rather than cancelling a paid
// order on the customer's authority.
func (s *OrderService) CancelOwn(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	order, err := s.repo.FindByIDAndUserID(ctx, orderID, uid)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("order is %s: %w", order.Status, ErrInvalidTransition)
	}

	return s.TransitionFrom(ctx, orderID, models.StatusPending, models.StatusCancelled, userID, "cancelled by customer")
}

func (s *OrderService) publishStatusChanged(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, actor string) {
	event := models.OrderStatusChangedEvent{
		EventType:  "order.status_changed",
		OrderID:    orderID.String(),
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode order.status_changed event", zap.Error(err))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, orderID.String(), payload); err != nil {
			s.logger.Error("failed to publish order.status_changed to kafka",
				zap.String("order_id", orderID.String()),
				zap.Error(err))
		}
	}

	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
			s.logger.Error("failed to publish order.status_changed to sns",
				zap.String("order_id", orderID.String()),
				zap.Error(err))
		}
	}
}

func paginated(orders []models.Order, total int64, page, limit int) *OrderResponse {
	return &OrderResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

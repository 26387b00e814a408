package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// IdempotencyPending marks a key claimed by a checkout that has not yet
// committed an order. Any other non-empty value is the committed order ID.
const IdempotencyPending = "pending"

// CartRepository stores one mutable cart per user, plus the idempotency keys
// used by checkout.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, userID string) error

	GetIdempotency(ctx context.Context, key string) (string, error)
	// ReserveIdempotency atomically claims key for one in-flight checkout.
	// It reports false when another checkout holds or has completed the key.
	ReserveIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)
	SetIdempotency(ctx context.Context, key, orderID string, ttl time.Duration) error
	DeleteIdempotency(ctx context.Context, key string) error
}

// RedisCartRepository implements CartRepository with one JSON value per user.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{client: client, ttl: ttl}
}

func (r *RedisCartRepository) cartKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// GetCart returns the user's cart, or nil when none exists.
func (r *RedisCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.cartKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

func (r *RedisCartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.client.Set(ctx, r.cartKey(cart.UserID), data, r.ttl).Err()
}

func (r *RedisCartRepository) DeleteCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.cartKey(userID)).Err()
}

func (r *RedisCartRepository) idemKey(key string) string {
	return "idem:checkout:" + key
}

// GetIdempotency returns the order ID previously recorded for key, or "".
func (r *RedisCartRepository) GetIdempotency(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.idemKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get idempotency key: %w", err)
	}
	return val, nil
}

// ReserveIdempotency claims key with SET NX: of any number of concurrent
// checkouts carrying the same key, exactly one wins the claim.
func (r *RedisCartRepository) ReserveIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.idemKey(key), IdempotencyPending, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (r *RedisCartRepository) SetIdempotency(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.idemKey(key), orderID, ttl).Err()
}

func (r *RedisCartRepository) DeleteIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.idemKey(key)).Err()
}

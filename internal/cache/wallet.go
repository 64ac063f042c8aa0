package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

const balanceKeyPrefix = "fair:balance:"

// RedisWallet keeps player balances as integer cents so debit/credit
// are exact and atomic (INCRBY/DECRBY, no float drift).
type RedisWallet struct {
	client *redis.Client
}

func NewRedisWallet(client *redis.Client) *RedisWallet {
	return &RedisWallet{client: client}
}

func balanceKey(contextID string) string {
	return balanceKeyPrefix + contextID
}

func toCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has sub-cent precision", game.ErrValidation, amount)
	}
	if !cents.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", game.ErrValidation, amount)
	}
	return cents.IntPart(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Debit removes the amount, failing without side effects when the
// balance would go negative.
func (w *RedisWallet) Debit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error) {
	cents, err := toCents(amount)
	if err != nil {
		return decimal.Zero, err
	}
	remaining, err := w.client.DecrBy(ctx, balanceKey(contextID), cents).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit %s: %w", contextID, err)
	}
	if remaining < 0 {
		// Roll the decrement back; the debit never happened.
		if _, err := w.client.IncrBy(ctx, balanceKey(contextID), cents).Result(); err != nil {
			return decimal.Zero, fmt.Errorf("debit rollback %s: %w", contextID, err)
		}
		return fromCents(remaining + cents), game.ErrInsufficientFunds
	}
	return fromCents(remaining), nil
}

// Credit adds the amount and returns the new balance.
func (w *RedisWallet) Credit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error) {
	cents, err := toCents(amount)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := w.client.IncrBy(ctx, balanceKey(contextID), cents).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit %s: %w", contextID, err)
	}
	return fromCents(balance), nil
}

// Balance reads the current balance; a missing key is zero.
func (w *RedisWallet) Balance(ctx context.Context, contextID string) (decimal.Decimal, error) {
	cents, err := w.client.Get(ctx, balanceKey(contextID)).Int64()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", contextID, err)
	}
	return fromCents(cents), nil
}

// SetBalance overwrites the balance (admin/test surface).
func (w *RedisWallet) SetBalance(ctx context.Context, contextID string, amount decimal.Decimal) error {
	cents := amount.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() || cents.IsNegative() {
		return fmt.Errorf("%w: balance %s must be a non-negative cent amount", game.ErrValidation, amount)
	}
	if err := w.client.Set(ctx, balanceKey(contextID), cents.IntPart(), 0).Err(); err != nil {
		return fmt.Errorf("set balance %s: %w", contextID, err)
	}
	return nil
}

package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the envelope broadcast to websocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	EventRoundWaiting = "round_waiting"
	EventRoundRunning = "round_running"
	EventRoundTick    = "round_tick"
	EventRoundCrashed = "round_crashed"
	EventBetPlaced    = "bet_placed"
	EventBetSettled   = "bet_settled"
	EventCashout      = "cashout"
)

type BetPlacedEvent struct {
	BetID     string          `json:"bet_id"`
	ContextID string          `json:"context_id"`
	Kind      GameKind        `json:"kind"`
	Stake     decimal.Decimal `json:"stake"`
}

type BetSettledEvent struct {
	BetID     string          `json:"bet_id"`
	ContextID string          `json:"context_id"`
	Kind      GameKind        `json:"kind"`
	Outcome   Outcome         `json:"outcome"`
	Payout    decimal.Decimal `json:"payout"`
	Profit    decimal.Decimal `json:"profit"`
}

type CashoutEvent struct {
	BetID      string          `json:"bet_id"`
	ContextID  string          `json:"context_id"`
	RoundID    string          `json:"round_id"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}

type RoundWaitingEvent struct {
	RoundID        string  `json:"round_id"`
	ServerSeedHash string  `json:"server_seed_hash"`
	Nonce          uint64  `json:"nonce"`
	BetsCloseIn    float64 `json:"bets_close_in_seconds"`
}

type RoundTickEvent struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type RoundCrashedEvent struct {
	RoundID        string  `json:"round_id"`
	CrashPoint     float64 `json:"crash_point"`
	ServerSeedHash string  `json:"server_seed_hash"`
	Nonce          uint64  `json:"nonce"`
}

// CrashBetRequest and CashoutRequest travel over the scheduler's
// single-writer channels; ResponseChan carries the reply back to the
// calling handler.
type CrashBetRequest struct {
	ContextID    string                `json:"context_id"`
	Stake        decimal.Decimal       `json:"stake"`
	AutoCashout  float64               `json:"auto_cashout,omitempty"`
	ResponseChan chan CrashBetResponse `json:"-"`
}

type CrashBetResponse struct {
	Bet Bet
	Err error
}

type CashoutRequest struct {
	ContextID    string               `json:"context_id"`
	BetID        string               `json:"bet_id"`
	ResponseChan chan CashoutResponse `json:"-"`
}

type CashoutResponse struct {
	Multiplier float64
	Payout     decimal.Decimal
	Err        error
}

// RoundSnapshot is the public view of the current crash round; the
// crash point and server seed stay hidden until the round ends.
type RoundSnapshot struct {
	RoundID           string     `json:"round_id"`
	Phase             RoundPhase `json:"phase"`
	ServerSeedHash    string     `json:"server_seed_hash"`
	Nonce             uint64     `json:"nonce"`
	CurrentMultiplier float64    `json:"current_multiplier"`
	CrashPoint        float64    `json:"crash_point,omitempty"` // set once ENDED
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           time.Time  `json:"ended_at,omitempty"`
}

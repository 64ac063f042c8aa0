package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetPending  BetStatus = "PENDING"
	BetSettled  BetStatus = "SETTLED"
	BetRefunded BetStatus = "REFUNDED"
)

// Payout multipliers per game. The house edge shaves winning payouts;
// losing bets pay zero.
var (
	coinFlipPayout  = decimal.RequireFromString("1.98") // 2 * (1 - 1% edge)
	payoutEdge      = decimal.RequireFromString("0.99")
	slotsJackpot    = decimal.RequireFromString("30") // every reel on the same stop
	slotsPairPayout = decimal.RequireFromString("2")  // all but one reel matching
)

// Bet is one wager. The four AtPlacement fields (hash, client seed,
// nonce, config) fully determine the outcome; once settled the record is
// immutable.
type Bet struct {
	ID             string          `json:"id"`
	ContextID      string          `json:"context_id"`
	RoundID        string          `json:"round_id,omitempty"`
	Config         GameConfig      `json:"config"`
	Stake          decimal.Decimal `json:"stake"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          uint64          `json:"nonce"`
	Status         BetStatus       `json:"status"`
	Outcome        *Outcome        `json:"outcome,omitempty"`
	Payout         decimal.Decimal `json:"payout"`
	Profit         decimal.Decimal `json:"profit"`
	PlacedAt       time.Time       `json:"placed_at"`
	SettledAt      time.Time       `json:"settled_at,omitempty"`
}

// Wallet is the balance collaborator. Debit fails with
// ErrInsufficientFunds; both calls return the resulting balance.
type Wallet interface {
	Debit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// BetRepository is the durable append-only bet history.
type BetRepository interface {
	SaveBet(ctx context.Context, bet Bet) error
	SettleBet(ctx context.Context, bet Bet) error
	MarkRefunded(ctx context.Context, betID string) error
	BetByID(ctx context.Context, betID string) (Bet, error)
	History(ctx context.Context, contextID string, limit int) ([]Bet, error)
	UnsettledBets(ctx context.Context) ([]Bet, error)
}

// Publisher is the fire-and-forget broadcast collaborator.
type Publisher interface {
	Publish(event Event)
}

// Ledger validates, places and settles wagers against the seed store,
// wallet and repository. It never holds money itself: every stake and
// payout moves through the wallet, and the conservation invariant
// (initial - sum(stake) + sum(payout) == final) holds for any sequence.
type Ledger struct {
	seeds  *SeedStore
	wallet Wallet
	repo   BetRepository
	pub    Publisher

	minStake decimal.Decimal
	maxStake decimal.Decimal
}

func NewLedger(seeds *SeedStore, wallet Wallet, repo BetRepository, pub Publisher) *Ledger {
	return &Ledger{
		seeds:    seeds,
		wallet:   wallet,
		repo:     repo,
		pub:      pub,
		minStake: decimal.RequireFromString("1"),
		maxStake: decimal.RequireFromString("10000"),
	}
}

func (l *Ledger) validateStake(stake decimal.Decimal) error {
	if !stake.Mul(decimal.NewFromInt(100)).IsInteger() {
		return fmt.Errorf("%w: stake must have at most 2 decimal places", ErrValidation)
	}
	if stake.LessThan(l.minStake) || stake.GreaterThan(l.maxStake) {
		return fmt.Errorf("%w: stake must be between %s and %s", ErrValidation, l.minStake, l.maxStake)
	}
	return nil
}

// PlaceBet debits the stake, snapshots the seed state and durably
// records a pending bet. The nonce is consumed only after the record is
// durable; any failure past the debit refunds the stake.
func (l *Ledger) PlaceBet(ctx context.Context, contextID, roundID string, cfg GameConfig, stake decimal.Decimal) (Bet, error) {
	if err := cfg.Validate(); err != nil {
		return Bet{}, err
	}
	if err := l.validateStake(stake); err != nil {
		return Bet{}, err
	}

	if _, err := l.wallet.Debit(ctx, contextID, stake); err != nil {
		return Bet{}, err
	}

	var bet Bet
	_, err := l.seeds.PlaceWager(ctx, contextID, func(snap PlacementSnapshot) error {
		bet = Bet{
			ID:             uuid.NewString(),
			ContextID:      contextID,
			RoundID:        roundID,
			Config:         cfg,
			Stake:          stake,
			ServerSeedHash: snap.ServerSeedHash,
			ClientSeed:     snap.ClientSeed,
			Nonce:          snap.Nonce,
			Status:         BetPending,
			PlacedAt:       time.Now(),
		}
		if err := l.repo.SaveBet(ctx, bet); err != nil {
			return fmt.Errorf("%w: save bet: %v", ErrPersistenceFailure, err)
		}
		return nil
	})
	if err != nil {
		if _, refundErr := l.wallet.Credit(ctx, contextID, stake); refundErr != nil {
			log.Printf("[LEDGER] Refund after failed placement for %s: %v", contextID, refundErr)
		}
		return Bet{}, err
	}

	l.publish(EventBetPlaced, BetPlacedEvent{
		BetID:     bet.ID,
		ContextID: bet.ContextID,
		Kind:      cfg.Kind,
		Stake:     bet.Stake,
	})
	log.Printf("[LEDGER] %s placed %s on %s (nonce %d)", contextID, stake, cfg.Kind, bet.Nonce)
	return bet, nil
}

// Settle derives the bet's outcome from its placement snapshot, pays
// winnings and appends the terminal record. A bet settles exactly once.
func (l *Ledger) Settle(ctx context.Context, bet Bet) (Bet, error) {
	if bet.Status != BetPending {
		return Bet{}, fmt.Errorf("%w: bet %s already %s", ErrStateConflict, bet.ID, bet.Status)
	}

	snap, err := l.seeds.Snapshot(ctx, bet.ContextID)
	if err != nil {
		return Bet{}, err
	}
	if snap.ServerSeedHash != bet.ServerSeedHash {
		return Bet{}, fmt.Errorf("%w: seed pair rotated under pending bet %s", ErrStateConflict, bet.ID)
	}

	outcome, err := Derive(snap.ServerSeed, bet.ClientSeed, bet.Nonce, bet.Config)
	if err != nil {
		return Bet{}, err
	}

	bet.Outcome = &outcome
	bet.Payout = bet.Stake.Mul(PayoutMultiplier(bet.Config, outcome)).Round(2)
	bet.Profit = bet.Payout.Sub(bet.Stake)
	bet.Status = BetSettled
	bet.SettledAt = time.Now()

	// Durable first: a bet is not settled until the record is written.
	// On failure the outcome is discarded and the stake goes back.
	if err := l.repo.SettleBet(ctx, bet); err != nil {
		// A conflict means another path already settled this copy.
		// That settle consumed the stake, so no refund is due here.
		if errors.Is(err, ErrStateConflict) {
			return Bet{}, err
		}
		return Bet{}, l.refundFailed(ctx, bet, err)
	}

	l.creditPayout(ctx, bet)
	if err := l.seeds.SettleWager(bet.ContextID); err != nil {
		return Bet{}, err
	}

	l.publish(EventBetSettled, BetSettledEvent{
		BetID:     bet.ID,
		ContextID: bet.ContextID,
		Kind:      bet.Config.Kind,
		Outcome:   outcome,
		Payout:    bet.Payout,
		Profit:    bet.Profit,
	})
	log.Printf("[LEDGER] Bet %s settled: payout %s (profit %s)", bet.ID, bet.Payout, bet.Profit)
	return bet, nil
}

// payoutCreditAttempts bounds the wallet retries after the settle
// record is durable. Giving up on the first error would silently drop
// the win.
const payoutCreditAttempts = 3

func (l *Ledger) creditPayout(ctx context.Context, bet Bet) {
	if !bet.Payout.IsPositive() {
		return
	}
	var err error
	for attempt := 1; attempt <= payoutCreditAttempts; attempt++ {
		if _, err = l.wallet.Credit(ctx, bet.ContextID, bet.Payout); err == nil {
			return
		}
	}
	log.Printf("[LEDGER] UNRECONCILED payout %s for bet %s (context %s): %v", bet.Payout, bet.ID, bet.ContextID, err)
}

func (l *Ledger) refundFailed(ctx context.Context, bet Bet, cause error) error {
	if _, err := l.wallet.Credit(ctx, bet.ContextID, bet.Stake); err != nil {
		log.Printf("[LEDGER] Refund for bet %s: %v", bet.ID, err)
	}
	if err := l.repo.MarkRefunded(ctx, bet.ID); err != nil {
		log.Printf("[LEDGER] Mark bet %s refunded: %v", bet.ID, err)
	}
	if err := l.seeds.SettleWager(bet.ContextID); err != nil {
		log.Printf("[LEDGER] Release wager slot for bet %s: %v", bet.ID, err)
	}
	return fmt.Errorf("%w: settle bet %s: %v", ErrPersistenceFailure, bet.ID, cause)
}

// Play runs an instant game (coin flip, dice, slots) end to end: place,
// settle, return the terminal bet. Crash bets run through the round
// scheduler instead, because their outcome is shared by the round.
func (l *Ledger) Play(ctx context.Context, contextID string, cfg GameConfig, stake decimal.Decimal) (Bet, error) {
	if cfg.Kind == GameCrash {
		return Bet{}, fmt.Errorf("%w: crash bets are placed against the running round", ErrValidation)
	}
	bet, err := l.PlaceBet(ctx, contextID, "", cfg, stake)
	if err != nil {
		return Bet{}, err
	}
	return l.Settle(ctx, bet)
}

// Outcome looks up a bet by ID.
func (l *Ledger) Outcome(ctx context.Context, betID string) (Bet, error) {
	bet, err := l.repo.BetByID(ctx, betID)
	if err != nil {
		if errors.Is(err, ErrBetNotFound) {
			return Bet{}, err
		}
		return Bet{}, fmt.Errorf("%w: load bet %s: %v", ErrPersistenceFailure, betID, err)
	}
	return bet, nil
}

// History returns the context's settled bets, most recent first.
func (l *Ledger) History(ctx context.Context, contextID string, limit int) ([]Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return l.repo.History(ctx, contextID, limit)
}

// RefundUnsettled sweeps bets left pending by a previous run and
// returns their stakes. Fail-safe bias: a stake is never kept without a
// settled record.
func (l *Ledger) RefundUnsettled(ctx context.Context) (int, error) {
	pending, err := l.repo.UnsettledBets(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unsettled bets: %w", err)
	}
	refunded := 0
	for _, bet := range pending {
		if _, err := l.wallet.Credit(ctx, bet.ContextID, bet.Stake); err != nil {
			log.Printf("[LEDGER] Recovery refund for bet %s: %v", bet.ID, err)
			continue
		}
		if err := l.repo.MarkRefunded(ctx, bet.ID); err != nil {
			log.Printf("[LEDGER] Mark recovered bet %s refunded: %v", bet.ID, err)
			continue
		}
		refunded++
	}
	if refunded > 0 {
		log.Printf("[LEDGER] Recovery refunded %d unsettled bets", refunded)
	}
	return refunded, nil
}

// PlaceRoundBet records a crash bet against a shared round seed. The
// snapshot comes from the round's own seed context, so the player's
// personal nonce sequence is untouched.
func (l *Ledger) PlaceRoundBet(ctx context.Context, contextID, roundID string, cfg GameConfig, stake decimal.Decimal, snap PlacementSnapshot) (Bet, error) {
	if err := cfg.Validate(); err != nil {
		return Bet{}, err
	}
	if err := l.validateStake(stake); err != nil {
		return Bet{}, err
	}
	if _, err := l.wallet.Debit(ctx, contextID, stake); err != nil {
		return Bet{}, err
	}
	bet := Bet{
		ID:             uuid.NewString(),
		ContextID:      contextID,
		RoundID:        roundID,
		Config:         cfg,
		Stake:          stake,
		ServerSeedHash: snap.ServerSeedHash,
		ClientSeed:     snap.ClientSeed,
		Nonce:          snap.Nonce,
		Status:         BetPending,
		PlacedAt:       time.Now(),
	}
	if err := l.repo.SaveBet(ctx, bet); err != nil {
		if _, refundErr := l.wallet.Credit(ctx, contextID, stake); refundErr != nil {
			log.Printf("[LEDGER] Refund after failed round placement for %s: %v", contextID, refundErr)
		}
		return Bet{}, fmt.Errorf("%w: save round bet: %v", ErrPersistenceFailure, err)
	}
	l.publish(EventBetPlaced, BetPlacedEvent{
		BetID:     bet.ID,
		ContextID: bet.ContextID,
		Kind:      cfg.Kind,
		Stake:     bet.Stake,
	})
	return bet, nil
}

// SettleRoundBet finalizes a crash bet at the given multiplier: the
// cashout point for winners, zero for bets that rode into the crash.
func (l *Ledger) SettleRoundBet(ctx context.Context, bet Bet, outcome Outcome, multiplier decimal.Decimal) (Bet, error) {
	if bet.Status != BetPending {
		return Bet{}, fmt.Errorf("%w: bet %s already %s", ErrStateConflict, bet.ID, bet.Status)
	}
	bet.Outcome = &outcome
	bet.Payout = bet.Stake.Mul(multiplier).Round(2)
	bet.Profit = bet.Payout.Sub(bet.Stake)
	bet.Status = BetSettled
	bet.SettledAt = time.Now()

	if err := l.repo.SettleBet(ctx, bet); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return Bet{}, err
		}
		if _, refundErr := l.wallet.Credit(ctx, bet.ContextID, bet.Stake); refundErr != nil {
			log.Printf("[LEDGER] Refund for round bet %s: %v", bet.ID, refundErr)
		}
		if markErr := l.repo.MarkRefunded(ctx, bet.ID); markErr != nil {
			log.Printf("[LEDGER] Mark round bet %s refunded: %v", bet.ID, markErr)
		}
		return Bet{}, fmt.Errorf("%w: settle round bet %s: %v", ErrPersistenceFailure, bet.ID, err)
	}
	l.creditPayout(ctx, bet)
	return bet, nil
}

func (l *Ledger) publish(eventType string, data any) {
	if l.pub != nil {
		l.pub.Publish(Event{Type: eventType, Data: data})
	}
}

// PayoutMultiplier returns the multiplier applied to the stake for a
// given config and outcome. Crash bets are excluded; their multiplier is
// the cashout point and is applied by the scheduler.
func PayoutMultiplier(cfg GameConfig, outcome Outcome) decimal.Decimal {
	switch cfg.Kind {
	case GameCoinFlip:
		if cfg.Coin.Pick == outcome.CoinSide {
			return coinFlipPayout
		}
	case GameDice:
		if cfg.Dice.Pick == outcome.Roll {
			return decimal.NewFromInt(int64(cfg.Dice.Sides)).Mul(payoutEdge)
		}
	case GameSlots:
		return slotsMultiplier(outcome.ReelStops)
	}
	return decimal.Zero
}

// slotsMultiplier pays on matching stop positions: every reel on the
// same stop hits the jackpot, all but one pays the pair rate.
func slotsMultiplier(stops []int) decimal.Decimal {
	if len(stops) < 2 {
		return decimal.Zero
	}
	counts := make(map[int]int, len(stops))
	best := 0
	for _, stop := range stops {
		counts[stop]++
		if counts[stop] > best {
			best = counts[stop]
		}
	}
	switch {
	case best == len(stops):
		return slotsJackpot
	case best == len(stops)-1 && len(stops) >= 3:
		return slotsPairPayout
	}
	return decimal.Zero
}

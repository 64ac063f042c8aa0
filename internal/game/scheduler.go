package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RoundPhase string

const (
	PhaseWaiting RoundPhase = "WAITING"
	PhaseRunning RoundPhase = "RUNNING"
	PhaseEnded   RoundPhase = "ENDED"
)

const (
	DefaultBettingWindow = 5 * time.Second
	DefaultCooldown      = 3 * time.Second
	DefaultTickInterval  = 100 * time.Millisecond

	betResponseTimeout = 5 * time.Second
	// Seed context owning the shared round seed. One round consumes one
	// nonce under it.
	CrashContextID = "crash:house"
)

// Round is the durable record of one crash round.
type Round struct {
	ID             string     `json:"id"`
	Phase          RoundPhase `json:"phase"`
	ServerSeedHash string     `json:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"`
	Nonce          uint64     `json:"nonce"`
	CrashPoint     float64    `json:"crash_point,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        time.Time  `json:"ended_at,omitempty"`
}

// RoundRepository persists round records and aborts rounds orphaned by
// a restart.
type RoundRepository interface {
	SaveRound(ctx context.Context, round Round) error
	EndRound(ctx context.Context, roundID string, crashPoint float64, endedAt time.Time) error
	AbortOpenRounds(ctx context.Context) (int, error)
}

type SchedulerConfig struct {
	BettingWindow time.Duration
	Cooldown      time.Duration
	TickInterval  time.Duration
	Game          GameConfig
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BettingWindow: DefaultBettingWindow,
		Cooldown:      DefaultCooldown,
		TickInterval:  DefaultTickInterval,
		Game:          DefaultCrashConfig(),
	}
}

type crashBet struct {
	bet         Bet
	autoCashout float64
	cashedOut   bool
}

type roundState struct {
	round      Round
	crashPoint float64
	multiplier float64
	bets       map[string]*crashBet
}

// Scheduler drives the continuous crash game through
// WAITING -> RUNNING -> ENDED phases. A single goroutine owns all round
// state; bets and cashouts arrive over channels, so the betting cutoff
// at the WAITING->RUNNING flip is atomic by construction.
type Scheduler struct {
	seeds  *SeedStore
	ledger *Ledger
	repo   RoundRepository
	pub    Publisher
	cfg    SchedulerConfig

	mu      sync.RWMutex
	current *roundState

	betCh     chan CrashBetRequest
	cashoutCh chan CashoutRequest
}

func NewScheduler(seeds *SeedStore, ledger *Ledger, repo RoundRepository, pub Publisher, cfg SchedulerConfig) *Scheduler {
	if cfg.BettingWindow <= 0 {
		cfg.BettingWindow = DefaultBettingWindow
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Game.Kind != GameCrash {
		cfg.Game = DefaultCrashConfig()
	}
	return &Scheduler{
		seeds:     seeds,
		ledger:    ledger,
		repo:      repo,
		pub:       pub,
		cfg:       cfg,
		betCh:     make(chan CrashBetRequest, 1000),
		cashoutCh: make(chan CashoutRequest, 1000),
	}
}

// Run loops rounds until the context is cancelled. It first sweeps
// state orphaned by a previous run: open rounds are aborted and their
// unsettled bets refunded, never silently kept.
func (s *Scheduler) Run(ctx context.Context) {
	if s.repo != nil {
		if aborted, err := s.repo.AbortOpenRounds(ctx); err != nil {
			log.Printf("[ROUND] Abort open rounds: %v", err)
		} else if aborted > 0 {
			log.Printf("[ROUND] Aborted %d orphaned rounds", aborted)
		}
	}
	if _, err := s.ledger.RefundUnsettled(ctx); err != nil {
		log.Printf("[ROUND] Recovery refunds: %v", err)
	}

	for {
		if err := s.runRound(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Println("[ROUND] Scheduler stopped")
				return
			}
			log.Printf("[ROUND] Round failed: %v", err)
			// Entropy or persistence trouble: fail closed and retry
			// after the cooldown instead of spinning.
		}
		select {
		case <-ctx.Done():
			log.Println("[ROUND] Scheduler stopped")
			return
		case <-time.After(s.cfg.Cooldown):
		}
	}
}

// PlaceBet queues a crash bet for the round goroutine and waits for the
// reply.
func (s *Scheduler) PlaceBet(ctx context.Context, req CrashBetRequest) (Bet, error) {
	req.ResponseChan = make(chan CrashBetResponse, 1)
	select {
	case s.betCh <- req:
	default:
		return Bet{}, fmt.Errorf("%w: bet queue full", ErrStateConflict)
	}
	select {
	case resp := <-req.ResponseChan:
		return resp.Bet, resp.Err
	case <-time.After(betResponseTimeout):
		return Bet{}, fmt.Errorf("%w: bet timed out", ErrStateConflict)
	case <-ctx.Done():
		return Bet{}, ctx.Err()
	}
}

// Cashout queues a cashout for the round goroutine and waits for the
// reply.
func (s *Scheduler) Cashout(ctx context.Context, req CashoutRequest) (CashoutResponse, error) {
	req.ResponseChan = make(chan CashoutResponse, 1)
	select {
	case s.cashoutCh <- req:
	default:
		return CashoutResponse{}, fmt.Errorf("%w: cashout queue full", ErrStateConflict)
	}
	select {
	case resp := <-req.ResponseChan:
		return resp, resp.Err
	case <-time.After(betResponseTimeout):
		return CashoutResponse{}, fmt.Errorf("%w: cashout timed out", ErrStateConflict)
	case <-ctx.Done():
		return CashoutResponse{}, ctx.Err()
	}
}

// CurrentRound returns the public view of the running round, or nil
// between rounds.
func (s *Scheduler) CurrentRound() *RoundSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	snap := RoundSnapshot{
		RoundID:           s.current.round.ID,
		Phase:             s.current.round.Phase,
		ServerSeedHash:    s.current.round.ServerSeedHash,
		Nonce:             s.current.round.Nonce,
		CurrentMultiplier: s.current.multiplier,
		StartedAt:         s.current.round.StartedAt,
	}
	if s.current.round.Phase == PhaseEnded {
		snap.CrashPoint = s.current.crashPoint
		snap.EndedAt = s.current.round.EndedAt
	}
	return &snap
}

func (s *Scheduler) runRound(ctx context.Context) error {
	// Make sure the house context carries a commitment; never rotate an
	// existing idle one here, rotation happens through reveal.
	if _, err := s.seeds.Snapshot(ctx, CrashContextID); err != nil {
		if !errors.Is(err, ErrStateConflict) {
			return err
		}
		if _, err := s.seeds.Commit(ctx, CrashContextID); err != nil {
			return err
		}
	}

	roundID := uuid.NewString()
	var (
		round      Round
		crashPoint float64
	)
	// The round occupies one wager slot under the house seed: the crash
	// point is fixed from the committed seed before any bet is taken,
	// and the seed cannot rotate until the round settles.
	_, err := s.seeds.PlaceWager(ctx, CrashContextID, func(snap PlacementSnapshot) error {
		outcome, err := Derive(snap.ServerSeed, snap.ClientSeed, snap.Nonce, s.cfg.Game)
		if err != nil {
			return err
		}
		crashPoint = outcome.Multiplier
		round = Round{
			ID:             roundID,
			Phase:          PhaseWaiting,
			ServerSeedHash: snap.ServerSeedHash,
			ClientSeed:     snap.ClientSeed,
			Nonce:          snap.Nonce,
			StartedAt:      time.Now(),
		}
		if s.repo != nil {
			if err := s.repo.SaveRound(ctx, round); err != nil {
				return fmt.Errorf("%w: save round: %v", ErrPersistenceFailure, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	state := &roundState{
		round:      round,
		crashPoint: crashPoint,
		multiplier: MinCrashMultiplier,
		bets:       make(map[string]*crashBet),
	}
	s.mu.Lock()
	s.current = state
	s.mu.Unlock()

	log.Printf("[ROUND] %s waiting: commitment %s... nonce %d", roundID, round.ServerSeedHash[:16], round.Nonce)
	s.publish(EventRoundWaiting, RoundWaitingEvent{
		RoundID:        roundID,
		ServerSeedHash: round.ServerSeedHash,
		Nonce:          round.Nonce,
		BetsCloseIn:    s.cfg.BettingWindow.Seconds(),
	})

	if err := s.bettingPhase(ctx, state); err != nil {
		return err
	}
	return s.runningPhase(ctx, state)
}

func (s *Scheduler) bettingPhase(ctx context.Context, state *roundState) error {
	timer := time.NewTimer(s.cfg.BettingWindow)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Atomic cutoff: the phase flips before any further channel
			// receive, so no bet lands after this point.
			s.mu.Lock()
			state.round.Phase = PhaseRunning
			state.round.StartedAt = time.Now()
			s.mu.Unlock()
			s.publish(EventRoundRunning, RoundTickEvent{RoundID: state.round.ID, Multiplier: MinCrashMultiplier})
			return nil

		case req := <-s.betCh:
			s.acceptBet(ctx, state, req)

		case req := <-s.cashoutCh:
			req.ResponseChan <- CashoutResponse{Err: fmt.Errorf("%w: round not running", ErrStateConflict)}

		case <-ctx.Done():
			return s.abandonRound(state, ctx.Err())
		}
	}
}

func (s *Scheduler) runningPhase(ctx context.Context, state *roundState) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	started := state.round.StartedAt

	for {
		select {
		case <-ticker.C:
			mult := multiplierCurve(time.Since(started).Seconds())
			if mult >= state.crashPoint {
				return s.endRound(ctx, state)
			}
			s.mu.Lock()
			state.multiplier = mult
			s.mu.Unlock()
			s.publish(EventRoundTick, RoundTickEvent{RoundID: state.round.ID, Multiplier: mult})
			s.autoCashouts(ctx, state, mult)

		case req := <-s.cashoutCh:
			s.acceptCashout(ctx, state, req)

		case req := <-s.betCh:
			req.ResponseChan <- CrashBetResponse{Err: fmt.Errorf("%w for round %s", ErrBettingClosed, state.round.ID)}

		case <-ctx.Done():
			return s.abandonRound(state, ctx.Err())
		}
	}
}

func (s *Scheduler) acceptBet(ctx context.Context, state *roundState, req CrashBetRequest) {
	if req.AutoCashout != 0 && req.AutoCashout < MinCrashMultiplier {
		req.ResponseChan <- CrashBetResponse{Err: fmt.Errorf("%w: auto cashout below %.2f", ErrValidation, MinCrashMultiplier)}
		return
	}
	snap := PlacementSnapshot{
		ServerSeedHash: state.round.ServerSeedHash,
		ClientSeed:     state.round.ClientSeed,
		Nonce:          state.round.Nonce,
	}
	bet, err := s.ledger.PlaceRoundBet(ctx, req.ContextID, state.round.ID, s.cfg.Game, req.Stake, snap)
	if err != nil {
		req.ResponseChan <- CrashBetResponse{Err: err}
		return
	}
	state.bets[bet.ID] = &crashBet{bet: bet, autoCashout: req.AutoCashout}
	req.ResponseChan <- CrashBetResponse{Bet: bet}
}

func (s *Scheduler) acceptCashout(ctx context.Context, state *roundState, req CashoutRequest) {
	cb, ok := state.bets[req.BetID]
	if !ok || cb.bet.ContextID != req.ContextID {
		req.ResponseChan <- CashoutResponse{Err: ErrBetNotFound}
		return
	}
	if cb.cashedOut {
		req.ResponseChan <- CashoutResponse{Err: fmt.Errorf("%w: already cashed out", ErrStateConflict)}
		return
	}
	mult := state.multiplier
	resp := s.cashoutAt(ctx, state, cb, mult)
	req.ResponseChan <- resp
}

func (s *Scheduler) cashoutAt(ctx context.Context, state *roundState, cb *crashBet, mult float64) CashoutResponse {
	outcome := Outcome{Kind: GameCrash, Multiplier: mult}
	settled, err := s.ledger.SettleRoundBet(ctx, cb.bet, outcome, decimal.NewFromFloat(mult))
	if err != nil {
		return CashoutResponse{Err: err}
	}
	cb.cashedOut = true
	cb.bet = settled
	s.publish(EventCashout, CashoutEvent{
		BetID:      settled.ID,
		ContextID:  settled.ContextID,
		RoundID:    state.round.ID,
		Multiplier: mult,
		Payout:     settled.Payout,
	})
	log.Printf("[ROUND] %s cashed out bet %s at %.2fx", settled.ContextID, settled.ID, mult)
	return CashoutResponse{Multiplier: mult, Payout: settled.Payout}
}

func (s *Scheduler) autoCashouts(ctx context.Context, state *roundState, mult float64) {
	for _, cb := range state.bets {
		if !cb.cashedOut && cb.autoCashout >= MinCrashMultiplier && mult >= cb.autoCashout {
			s.cashoutAt(ctx, state, cb, cb.autoCashout)
		}
	}
}

func (s *Scheduler) endRound(ctx context.Context, state *roundState) error {
	crash := state.crashPoint
	s.mu.Lock()
	state.round.Phase = PhaseEnded
	state.round.CrashPoint = crash
	state.round.EndedAt = time.Now()
	state.multiplier = crash
	s.mu.Unlock()

	// Bets still open at the crash settle as losses.
	losses := Outcome{Kind: GameCrash, Multiplier: crash}
	for _, cb := range state.bets {
		if cb.cashedOut {
			continue
		}
		if _, err := s.ledger.SettleRoundBet(ctx, cb.bet, losses, decimal.Zero); err != nil {
			log.Printf("[ROUND] Settle losing bet %s: %v", cb.bet.ID, err)
		}
	}

	if s.repo != nil {
		if err := s.repo.EndRound(ctx, state.round.ID, crash, state.round.EndedAt); err != nil {
			log.Printf("[ROUND] End round %s: %v", state.round.ID, err)
		}
	}
	if err := s.seeds.SettleWager(CrashContextID); err != nil {
		log.Printf("[ROUND] Release house wager slot: %v", err)
	}

	s.publish(EventRoundCrashed, RoundCrashedEvent{
		RoundID:        state.round.ID,
		CrashPoint:     crash,
		ServerSeedHash: state.round.ServerSeedHash,
		Nonce:          state.round.Nonce,
	})
	log.Printf("[ROUND] %s crashed at %.2fx (%d bets)", state.round.ID, crash, len(state.bets))
	return nil
}

// abandonRound refunds open bets when the scheduler is cancelled
// mid-round.
func (s *Scheduler) abandonRound(state *roundState, cause error) error {
	ctx := context.Background()
	for _, cb := range state.bets {
		if cb.cashedOut {
			continue
		}
		if _, err := s.ledger.wallet.Credit(ctx, cb.bet.ContextID, cb.bet.Stake); err != nil {
			log.Printf("[ROUND] Refund abandoned bet %s: %v", cb.bet.ID, err)
			continue
		}
		if err := s.ledger.repo.MarkRefunded(ctx, cb.bet.ID); err != nil {
			log.Printf("[ROUND] Mark abandoned bet %s refunded: %v", cb.bet.ID, err)
		}
	}
	if s.repo != nil {
		if err := s.repo.EndRound(ctx, state.round.ID, 0, time.Now()); err != nil {
			log.Printf("[ROUND] Close abandoned round %s: %v", state.round.ID, err)
		}
	}
	if err := s.seeds.SettleWager(CrashContextID); err != nil {
		log.Printf("[ROUND] Release house wager slot: %v", err)
	}
	return cause
}

func (s *Scheduler) publish(eventType string, data any) {
	if s.pub != nil {
		s.pub.Publish(Event{Type: eventType, Data: data})
	}
}

// multiplierCurve maps elapsed seconds onto the displayed multiplier,
// floored to 2 decimal places.
func multiplierCurve(elapsed float64) float64 {
	m := 1.0 + elapsed/1.5 + elapsed*elapsed*0.005
	return math.Floor(m*100) / 100
}

package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// memoryWallet is an in-memory Wallet with the same semantics as the
// Redis-backed one: debits fail when the balance would go negative.
type memoryWallet struct {
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	failCredits int
	creditCalls int
}

func newMemoryWallet() *memoryWallet {
	return &memoryWallet{balances: make(map[string]decimal.Decimal)}
}

func (w *memoryWallet) set(contextID string, amount string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[contextID] = decimal.RequireFromString(amount)
}

func (w *memoryWallet) balance(contextID string) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[contextID]
}

func (w *memoryWallet) Debit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.balances[contextID].Sub(amount)
	if next.IsNegative() {
		return w.balances[contextID], fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, w.balances[contextID], amount)
	}
	w.balances[contextID] = next
	return next, nil
}

func (w *memoryWallet) Credit(ctx context.Context, contextID string, amount decimal.Decimal) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.creditCalls++
	if w.failCredits > 0 {
		w.failCredits--
		return w.balances[contextID], errors.New("credit failed")
	}
	next := w.balances[contextID].Add(amount)
	w.balances[contextID] = next
	return next, nil
}

// memoryBetRepo is an in-memory BetRepository.
type memoryBetRepo struct {
	mu         sync.Mutex
	bets       map[string]Bet
	order      []string
	failSave   bool
	failSettle bool
}

func newMemoryBetRepo() *memoryBetRepo {
	return &memoryBetRepo{bets: make(map[string]Bet)}
}

func (r *memoryBetRepo) SaveBet(ctx context.Context, bet Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errors.New("save failed")
	}
	r.bets[bet.ID] = bet
	r.order = append(r.order, bet.ID)
	return nil
}

func (r *memoryBetRepo) SettleBet(ctx context.Context, bet Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSettle {
		return errors.New("settle failed")
	}
	existing, ok := r.bets[bet.ID]
	if !ok {
		return ErrBetNotFound
	}
	if existing.Status != BetPending {
		return ErrStateConflict
	}
	r.bets[bet.ID] = bet
	return nil
}

func (r *memoryBetRepo) MarkRefunded(ctx context.Context, betID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bet, ok := r.bets[betID]
	if !ok {
		return ErrBetNotFound
	}
	bet.Status = BetRefunded
	r.bets[betID] = bet
	return nil
}

func (r *memoryBetRepo) BetByID(ctx context.Context, betID string) (Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bet, ok := r.bets[betID]
	if !ok {
		return Bet{}, ErrBetNotFound
	}
	return bet, nil
}

func (r *memoryBetRepo) History(ctx context.Context, contextID string, limit int) ([]Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Bet
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		bet := r.bets[r.order[i]]
		if bet.ContextID == contextID && bet.Status == BetSettled {
			out = append(out, bet)
		}
	}
	return out, nil
}

func (r *memoryBetRepo) UnsettledBets(ctx context.Context) ([]Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Bet
	for _, id := range r.order {
		if bet := r.bets[id]; bet.Status == BetPending {
			out = append(out, bet)
		}
	}
	return out, nil
}

func newTestLedger(t *testing.T) (*Ledger, *memoryWallet, *memoryBetRepo, *SeedStore) {
	t.Helper()
	wallet := newMemoryWallet()
	repo := newMemoryBetRepo()
	seeds := NewSeedStore(newMemorySeedRepo())
	ledger := NewLedger(seeds, wallet, repo, nil)
	return ledger, wallet, repo, seeds
}

func TestLedger_Play(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	if _, err := seeds.Commit(ctx, "player1"); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	stake := decimal.RequireFromString("10")
	bet, err := ledger.Play(ctx, "player1", coinConfig(CoinHeads), stake)
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if bet.Status != BetSettled {
		t.Errorf("status = %s, want SETTLED", bet.Status)
	}
	if bet.Outcome == nil || bet.Outcome.Kind != GameCoinFlip {
		t.Fatalf("outcome missing or wrong kind: %+v", bet.Outcome)
	}

	want := decimal.RequireFromString("90")
	if bet.Outcome.CoinSide == CoinHeads {
		want = want.Add(decimal.RequireFromString("19.80"))
		if !bet.Payout.Equal(decimal.RequireFromString("19.80")) {
			t.Errorf("winning payout = %s, want 19.80", bet.Payout)
		}
	} else if !bet.Payout.IsZero() {
		t.Errorf("losing payout = %s, want 0", bet.Payout)
	}
	if got := wallet.balance("player1"); !got.Equal(want) {
		t.Errorf("balance = %s, want %s", got, want)
	}
}

func TestLedger_PlayRejectsCrash(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	_, err := ledger.Play(ctx, "player1", DefaultCrashConfig(), decimal.RequireFromString("10"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Play(crash) error = %v, want ErrValidation", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balance changed on rejected bet: %s", got)
	}
}

func TestLedger_StakeValidation(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100000")
	seeds.Commit(ctx, "player1")

	tests := []struct {
		name  string
		stake string
	}{
		{name: "below minimum", stake: "0.50"},
		{name: "zero", stake: "0"},
		{name: "negative", stake: "-5"},
		{name: "above maximum", stake: "10000.01"},
		{name: "sub-cent precision", stake: "1.999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Play(ctx, "player1", coinConfig(CoinHeads), decimal.RequireFromString(tt.stake))
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Play(stake=%s) error = %v, want ErrValidation", tt.stake, err)
			}
		})
	}
}

func TestLedger_InsufficientFunds(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "5")
	seeds.Commit(ctx, "player1")

	_, err := ledger.Play(ctx, "player1", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Play() error = %v, want ErrInsufficientFunds", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("5")) {
		t.Errorf("balance = %s, want 5 untouched", got)
	}
}

func TestLedger_FailedSaveRefundsAndKeepsNonce(t *testing.T) {
	ledger, wallet, repo, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	repo.failSave = true
	_, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("PlaceBet() error = %v, want ErrPersistenceFailure", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("stake not refunded after failed save: balance = %s", got)
	}

	repo.failSave = false
	bet, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}
	if bet.Nonce != 0 {
		t.Errorf("nonce = %d after failed save, want 0", bet.Nonce)
	}
}

func TestLedger_FailedSettleRefunds(t *testing.T) {
	ledger, wallet, repo, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	bet, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}

	repo.failSettle = true
	if _, err := ledger.Settle(ctx, bet); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("Settle() error = %v, want ErrPersistenceFailure", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("stake not refunded after failed settle: balance = %s", got)
	}
	stored, err := ledger.Outcome(ctx, bet.ID)
	if err != nil {
		t.Fatalf("Outcome() error: %v", err)
	}
	if stored.Status != BetRefunded {
		t.Errorf("status = %s, want REFUNDED", stored.Status)
	}
}

func TestLedger_DoubleSettle(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	bet, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}
	settled, err := ledger.Settle(ctx, bet)
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if _, err := ledger.Settle(ctx, settled); !errors.Is(err, ErrStateConflict) {
		t.Errorf("second Settle() error = %v, want ErrStateConflict", err)
	}
}

// A caller retrying with a copy still marked pending must get the
// conflict back, not a refund: the first settle already consumed the
// stake, so crediting it again would mint money.
func TestLedger_StaleSettleReplay(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	bet, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}
	settled, err := ledger.Settle(ctx, bet)
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	after := wallet.balance("player1")

	// bet is the pre-settle copy, still PENDING.
	_, err = ledger.Settle(ctx, bet)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("replay Settle() error = %v, want ErrStateConflict", err)
	}
	if errors.Is(err, ErrPersistenceFailure) {
		t.Error("replay conflict reported as a persistence failure")
	}
	if got := wallet.balance("player1"); !got.Equal(after) {
		t.Errorf("replay moved balance %s -> %s", after, got)
	}
	stored, err := ledger.Outcome(ctx, bet.ID)
	if err != nil {
		t.Fatalf("Outcome() error: %v", err)
	}
	if stored.Status != BetSettled || !stored.Payout.Equal(settled.Payout) {
		t.Errorf("first settle overwritten: status=%s payout=%s", stored.Status, stored.Payout)
	}
}

// Crash-sweep replay: a bet cashed out mid-round is swept again at
// zero when the round ends and the cashout flag was lost. The sweep
// must see the conflict and leave the cashout payout alone.
func TestLedger_RoundSettleStaleReplay(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")

	if _, err := seeds.Commit(ctx, CrashContextID); err != nil {
		t.Fatalf("Commit(house) error: %v", err)
	}
	snap, err := seeds.PlaceWager(ctx, CrashContextID, func(PlacementSnapshot) error { return nil })
	if err != nil {
		t.Fatalf("PlaceWager(house) error: %v", err)
	}
	bet, err := ledger.PlaceRoundBet(ctx, "player1", "round-1", DefaultCrashConfig(), decimal.RequireFromString("10"), snap)
	if err != nil {
		t.Fatalf("PlaceRoundBet() error: %v", err)
	}

	outcome := Outcome{Kind: GameCrash, Multiplier: 5.00}
	if _, err := ledger.SettleRoundBet(ctx, bet, outcome, decimal.RequireFromString("2.50")); err != nil {
		t.Fatalf("SettleRoundBet() error: %v", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("115")) {
		t.Fatalf("balance after cashout = %s, want 115", got)
	}

	// bet is the pre-settle copy, still PENDING.
	_, err = ledger.SettleRoundBet(ctx, bet, outcome, decimal.Zero)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("sweep replay error = %v, want ErrStateConflict", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("115")) {
		t.Errorf("sweep replay moved balance to %s, want 115", got)
	}
	stored, err := ledger.Outcome(ctx, bet.ID)
	if err != nil {
		t.Fatalf("Outcome() error: %v", err)
	}
	if stored.Status != BetSettled || !stored.Payout.Equal(decimal.RequireFromString("25")) {
		t.Errorf("cashout record overwritten: status=%s payout=%s", stored.Status, stored.Payout)
	}
}

// Transient wallet failures after the settle record is durable are
// retried; the win is not dropped on the first error.
func TestLedger_PayoutCreditRetries(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")

	if _, err := seeds.Commit(ctx, CrashContextID); err != nil {
		t.Fatalf("Commit(house) error: %v", err)
	}
	snap, err := seeds.PlaceWager(ctx, CrashContextID, func(PlacementSnapshot) error { return nil })
	if err != nil {
		t.Fatalf("PlaceWager(house) error: %v", err)
	}
	bet, err := ledger.PlaceRoundBet(ctx, "player1", "round-1", DefaultCrashConfig(), decimal.RequireFromString("10"), snap)
	if err != nil {
		t.Fatalf("PlaceRoundBet() error: %v", err)
	}

	wallet.failCredits = payoutCreditAttempts - 1
	outcome := Outcome{Kind: GameCrash, Multiplier: 5.00}
	settled, err := ledger.SettleRoundBet(ctx, bet, outcome, decimal.RequireFromString("2"))
	if err != nil {
		t.Fatalf("SettleRoundBet() error: %v", err)
	}
	if !settled.Payout.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("payout = %s, want 20", settled.Payout)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("110")) {
		t.Errorf("balance = %s, want 110 after retried credit", got)
	}
	if wallet.creditCalls != payoutCreditAttempts {
		t.Errorf("credit attempts = %d, want %d", wallet.creditCalls, payoutCreditAttempts)
	}
}

// Money conservation over a random sequence of bets:
// initial - sum(stakes) + sum(payouts) == final balance.
func TestLedger_Conservation(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	initial := decimal.RequireFromString("1000000")
	wallet.set("player1", "1000000")
	seeds.Commit(ctx, "player1")

	rng := rand.New(rand.NewSource(1))
	configs := []GameConfig{
		coinConfig(CoinHeads),
		coinConfig(CoinTails),
		diceConfig(6, 4),
		slotsConfig(5, 5, 5),
	}

	totalStaked := decimal.Zero
	totalPaid := decimal.Zero
	for i := 0; i < 500; i++ {
		stake := decimal.NewFromInt(int64(rng.Intn(100) + 1))
		bet, err := ledger.Play(ctx, "player1", configs[rng.Intn(len(configs))], stake)
		if err != nil {
			t.Fatalf("Play() error at bet %d: %v", i, err)
		}
		totalStaked = totalStaked.Add(bet.Stake)
		totalPaid = totalPaid.Add(bet.Payout)
	}

	want := initial.Sub(totalStaked).Add(totalPaid)
	if got := wallet.balance("player1"); !got.Equal(want) {
		t.Errorf("conservation violated: balance = %s, want %s (staked %s, paid %s)", got, want, totalStaked, totalPaid)
	}
}

func TestLedger_History(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "10000")
	seeds.Commit(ctx, "player1")

	var placed []string
	for i := 0; i < 5; i++ {
		bet, err := ledger.Play(ctx, "player1", coinConfig(CoinHeads), decimal.RequireFromString("10"))
		if err != nil {
			t.Fatalf("Play() error: %v", err)
		}
		placed = append(placed, bet.ID)
	}

	history, err := ledger.History(ctx, "player1", 3)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d bets, want 3", len(history))
	}
	// Most recent first.
	for i, bet := range history {
		if want := placed[len(placed)-1-i]; bet.ID != want {
			t.Errorf("history[%d] = %s, want %s", i, bet.ID, want)
		}
	}
	if !sort.SliceIsSorted(history, func(i, j int) bool { return history[i].Nonce > history[j].Nonce }) {
		t.Error("history not in descending nonce order")
	}
}

func TestLedger_RefundUnsettled(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")
	seeds.Commit(ctx, "player1")

	if _, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinHeads), decimal.RequireFromString("30")); err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}
	if _, err := ledger.PlaceBet(ctx, "player1", "", coinConfig(CoinTails), decimal.RequireFromString("20")); err != nil {
		t.Fatalf("PlaceBet() error: %v", err)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("balance after two placements = %s, want 50", got)
	}

	refunded, err := ledger.RefundUnsettled(ctx)
	if err != nil {
		t.Fatalf("RefundUnsettled() error: %v", err)
	}
	if refunded != 2 {
		t.Errorf("refunded %d bets, want 2", refunded)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balance after sweep = %s, want 100", got)
	}
}

func TestLedger_RoundBets(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")

	// Crash bets derive from the house seed context, not the player's.
	if _, err := seeds.Commit(ctx, CrashContextID); err != nil {
		t.Fatalf("Commit(house) error: %v", err)
	}
	snap, err := seeds.PlaceWager(ctx, CrashContextID, func(PlacementSnapshot) error { return nil })
	if err != nil {
		t.Fatalf("PlaceWager(house) error: %v", err)
	}

	bet, err := ledger.PlaceRoundBet(ctx, "player1", "round-1", DefaultCrashConfig(), decimal.RequireFromString("10"), snap)
	if err != nil {
		t.Fatalf("PlaceRoundBet() error: %v", err)
	}
	if bet.RoundID != "round-1" {
		t.Errorf("round ID = %s, want round-1", bet.RoundID)
	}
	if bet.ServerSeedHash != snap.ServerSeedHash || bet.Nonce != snap.Nonce {
		t.Error("round bet does not carry the round's seed snapshot")
	}

	// Cashout at 2.50x.
	outcome := Outcome{Kind: GameCrash, Multiplier: 5.00}
	settled, err := ledger.SettleRoundBet(ctx, bet, outcome, decimal.RequireFromString("2.50"))
	if err != nil {
		t.Fatalf("SettleRoundBet() error: %v", err)
	}
	if !settled.Payout.Equal(decimal.RequireFromString("25")) {
		t.Errorf("payout = %s, want 25", settled.Payout)
	}
	if got := wallet.balance("player1"); !got.Equal(decimal.RequireFromString("115")) {
		t.Errorf("balance = %s, want 115", got)
	}

	// Settling twice is refused.
	if _, err := ledger.SettleRoundBet(ctx, settled, outcome, decimal.Zero); !errors.Is(err, ErrStateConflict) {
		t.Errorf("double SettleRoundBet() error = %v, want ErrStateConflict", err)
	}
}

func TestPayoutMultiplier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GameConfig
		outcome Outcome
		want    string
	}{
		{name: "coin win", cfg: coinConfig(CoinHeads), outcome: Outcome{Kind: GameCoinFlip, CoinSide: CoinHeads}, want: "1.98"},
		{name: "coin loss", cfg: coinConfig(CoinHeads), outcome: Outcome{Kind: GameCoinFlip, CoinSide: CoinTails}, want: "0"},
		{name: "dice win", cfg: diceConfig(6, 4), outcome: Outcome{Kind: GameDice, Roll: 4}, want: "5.94"},
		{name: "dice loss", cfg: diceConfig(6, 4), outcome: Outcome{Kind: GameDice, Roll: 5}, want: "0"},
		{name: "slots jackpot", cfg: slotsConfig(5, 5, 5), outcome: Outcome{Kind: GameSlots, ReelStops: []int{2, 2, 2}}, want: "30"},
		{name: "slots pair", cfg: slotsConfig(5, 5, 5), outcome: Outcome{Kind: GameSlots, ReelStops: []int{2, 2, 4}}, want: "2"},
		{name: "slots miss", cfg: slotsConfig(5, 5, 5), outcome: Outcome{Kind: GameSlots, ReelStops: []int{1, 2, 3}}, want: "0"},
		{name: "crash excluded", cfg: DefaultCrashConfig(), outcome: Outcome{Kind: GameCrash, Multiplier: 3.5}, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PayoutMultiplier(tt.cfg, tt.outcome)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PayoutMultiplier() = %s, want %s", got, tt.want)
			}
		})
	}
}

// End-to-end walkthrough: commit, bet dice at nonce 0, settle, reveal,
// recompute. The recomputed roll must equal the one paid out.
func TestLedger_ProvablyFairScenario(t *testing.T) {
	ledger, wallet, _, seeds := newTestLedger(t)
	ctx := context.Background()
	wallet.set("player1", "100")

	hash, err := seeds.Commit(ctx, "player1")
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if err := seeds.SetClientSeed(ctx, "player1", "42"); err != nil {
		t.Fatalf("SetClientSeed() error: %v", err)
	}

	bet, err := ledger.Play(ctx, "player1", diceConfig(6, 3), decimal.RequireFromString("10"))
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if bet.Nonce != 0 || bet.ServerSeedHash != hash || bet.ClientSeed != "42" {
		t.Fatalf("bet snapshot wrong: nonce=%d hash=%s client=%s", bet.Nonce, bet.ServerSeedHash, bet.ClientSeed)
	}

	revealed, err := seeds.Reveal(ctx, "player1")
	if err != nil {
		t.Fatalf("Reveal() error: %v", err)
	}
	if HashSeed(revealed.ServerSeed) != hash {
		t.Fatal("revealed seed fails the commitment check")
	}

	ok, err := Verify(revealed.ServerSeed, hash, "42", 0, bet.Config, *bet.Outcome)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if !ok {
		t.Errorf("player verification failed for settled roll %d", bet.Outcome.Roll)
	}
}

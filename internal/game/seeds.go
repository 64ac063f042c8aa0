package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// SeedPair is one player-context's active commitment. The server seed
// stays private until reveal; the pair is immutable while bets are
// pending under it.
type SeedPair struct {
	ServerSeed     string    `json:"-"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          uint64    `json:"nonce"`
	CreatedAt      time.Time `json:"created_at"`
}

// PlacementSnapshot captures the seed state a bet was accepted under.
// The derived outcome is a pure function of these fields plus the game
// config, so recording them makes every bet reproducible.
type PlacementSnapshot struct {
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
}

// RevealedSeed is returned to the player after rotation for independent
// verification of all bets settled under the pair.
type RevealedSeed struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          uint64 `json:"nonce"`
}

// SeedRepository is the durable side of the seed lifecycle. Active pairs
// survive restarts; LastNonce recovers the counter from recorded bets.
type SeedRepository interface {
	SaveSeedPair(ctx context.Context, contextID string, pair SeedPair) error
	ActiveSeedPair(ctx context.Context, contextID string) (SeedPair, bool, error)
	MarkRevealed(ctx context.Context, contextID, serverSeedHash string) error
	LastNonce(ctx context.Context, contextID, serverSeedHash string) (uint64, bool, error)
}

// SeedStore owns the commit/reveal lifecycle per player-context. All
// mutations for a context run under that context's mutex, so nonce
// allocation is single-writer; different contexts never contend.
type SeedStore struct {
	mu       sync.Mutex
	contexts map[string]*seedContext
	repo     SeedRepository
}

type seedContext struct {
	mu      sync.Mutex
	pair    *SeedPair
	pending int // unsettled bets under the current commitment
}

func NewSeedStore(repo SeedRepository) *SeedStore {
	return &SeedStore{
		contexts: make(map[string]*seedContext),
		repo:     repo,
	}
}

func (s *SeedStore) context(id string) *seedContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.contexts[id]
	if !ok {
		sc = &seedContext{}
		s.contexts[id] = sc
	}
	return sc
}

// resume reloads a context's active pair from the repository after a
// restart, picking the nonce up from the last durably recorded bet.
func (sc *seedContext) resume(ctx context.Context, repo SeedRepository, contextID string) error {
	if sc.pair != nil || repo == nil {
		return nil
	}
	pair, ok, err := repo.ActiveSeedPair(ctx, contextID)
	if err != nil {
		return fmt.Errorf("resume seed pair: %w", err)
	}
	if !ok {
		return nil
	}
	if last, found, err := repo.LastNonce(ctx, contextID, pair.ServerSeedHash); err != nil {
		return fmt.Errorf("recover nonce: %w", err)
	} else if found && last+1 > pair.Nonce {
		pair.Nonce = last + 1
	}
	sc.pair = &pair
	log.Printf("[SEEDS] Resumed context %s at nonce %d", contextID, pair.Nonce)
	return nil
}

// Commit creates a fresh pair for the context and returns only its
// hash. An active commitment with pending bets cannot be replaced; an
// idle one is rotated silently.
func (s *SeedStore) Commit(ctx context.Context, contextID string) (string, error) {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return "", err
	}
	if sc.pair != nil {
		if sc.pending > 0 {
			return "", fmt.Errorf("%w: %d bets pending under %s", ErrAlreadyCommitted, sc.pending, sc.pair.ServerSeedHash)
		}
		// Re-commit on an idle pair keeps the player's client seed.
		return sc.rotateLocked(ctx, s.repo, contextID, sc.pair.ClientSeed)
	}

	clientSeed, err := GenerateClientSeed()
	if err != nil {
		return "", err
	}
	return sc.rotateLocked(ctx, s.repo, contextID, clientSeed)
}

func (sc *seedContext) rotateLocked(ctx context.Context, repo SeedRepository, contextID, clientSeed string) (string, error) {
	serverSeed, err := GenerateServerSeed()
	if err != nil {
		return "", err
	}
	pair := SeedPair{
		ServerSeed:     serverSeed,
		ServerSeedHash: HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          0,
		CreatedAt:      time.Now(),
	}
	if repo != nil {
		if err := repo.SaveSeedPair(ctx, contextID, pair); err != nil {
			return "", fmt.Errorf("%w: save seed pair: %v", ErrPersistenceFailure, err)
		}
	}
	sc.pair = &pair
	log.Printf("[SEEDS] Context %s committed to %s...", contextID, pair.ServerSeedHash[:16])
	return pair.ServerSeedHash, nil
}

// ClientSeed returns the context's current client seed.
func (s *SeedStore) ClientSeed(ctx context.Context, contextID string) (string, error) {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return "", err
	}
	if sc.pair == nil {
		return "", fmt.Errorf("%w: no commitment for context %s", ErrStateConflict, contextID)
	}
	return sc.pair.ClientSeed, nil
}

// SetClientSeed changes the client seed between rounds. Changing it
// mid-round would break the determinism contract for pending bets, so
// that is refused outright.
func (s *SeedStore) SetClientSeed(ctx context.Context, contextID, seed string) error {
	if seed == "" {
		return fmt.Errorf("%w: client seed must not be empty", ErrValidation)
	}
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return err
	}
	if sc.pair == nil {
		return fmt.Errorf("%w: no commitment for context %s", ErrStateConflict, contextID)
	}
	if sc.pending > 0 {
		return fmt.Errorf("%w: %d bets pending", ErrRoundInProgress, sc.pending)
	}
	sc.pair.ClientSeed = seed
	if s.repo != nil {
		if err := s.repo.SaveSeedPair(ctx, contextID, *sc.pair); err != nil {
			return fmt.Errorf("%w: save client seed: %v", ErrPersistenceFailure, err)
		}
	}
	return nil
}

// Snapshot returns the current seed state without consuming a nonce.
func (s *SeedStore) Snapshot(ctx context.Context, contextID string) (PlacementSnapshot, error) {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return PlacementSnapshot{}, err
	}
	if sc.pair == nil {
		return PlacementSnapshot{}, fmt.Errorf("%w: no commitment for context %s", ErrStateConflict, contextID)
	}
	return PlacementSnapshot{
		ServerSeed:     sc.pair.ServerSeed,
		ServerSeedHash: sc.pair.ServerSeedHash,
		ClientSeed:     sc.pair.ClientSeed,
		Nonce:          sc.pair.Nonce,
	}, nil
}

// PlaceWager hands the caller a snapshot of the current seed state and
// runs record, which must durably store the wager. The nonce advances
// only after record succeeds (write-ahead), so a failed write leaves the
// counter untouched and the same nonce is reissued to the next attempt.
// The context mutex is held throughout: wagers for one context are
// strictly serialized and can never observe overlapping nonces.
func (s *SeedStore) PlaceWager(ctx context.Context, contextID string, record func(PlacementSnapshot) error) (PlacementSnapshot, error) {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return PlacementSnapshot{}, err
	}
	if sc.pair == nil {
		return PlacementSnapshot{}, fmt.Errorf("%w: no commitment for context %s", ErrStateConflict, contextID)
	}

	snap := PlacementSnapshot{
		ServerSeed:     sc.pair.ServerSeed,
		ServerSeedHash: sc.pair.ServerSeedHash,
		ClientSeed:     sc.pair.ClientSeed,
		Nonce:          sc.pair.Nonce,
	}
	if err := record(snap); err != nil {
		return PlacementSnapshot{}, err
	}
	sc.pair.Nonce++
	sc.pending++
	return snap, nil
}

// SettleWager releases one pending slot after a bet resolves.
func (s *SeedStore) SettleWager(contextID string) error {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.pending == 0 {
		return fmt.Errorf("%w: no pending wager for context %s", ErrStateConflict, contextID)
	}
	sc.pending--
	return nil
}

// Reveal discloses the committed server seed once every bet under it is
// settled, then rotates to a fresh pair so the context keeps a valid
// commitment for the next round.
func (s *SeedStore) Reveal(ctx context.Context, contextID string) (RevealedSeed, error) {
	sc := s.context(contextID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.resume(ctx, s.repo, contextID); err != nil {
		return RevealedSeed{}, err
	}
	if sc.pair == nil {
		return RevealedSeed{}, fmt.Errorf("%w: no commitment for context %s", ErrNothingToReveal, contextID)
	}
	if sc.pending > 0 {
		return RevealedSeed{}, fmt.Errorf("%w: %d bets still pending", ErrNothingToReveal, sc.pending)
	}

	revealed := RevealedSeed{
		ServerSeed:     sc.pair.ServerSeed,
		ServerSeedHash: sc.pair.ServerSeedHash,
		ClientSeed:     sc.pair.ClientSeed,
		Nonce:          sc.pair.Nonce,
	}
	if s.repo != nil {
		if err := s.repo.MarkRevealed(ctx, contextID, revealed.ServerSeedHash); err != nil {
			return RevealedSeed{}, fmt.Errorf("%w: mark revealed: %v", ErrPersistenceFailure, err)
		}
	}
	if _, err := sc.rotateLocked(ctx, s.repo, contextID, revealed.ClientSeed); err != nil {
		return RevealedSeed{}, err
	}
	log.Printf("[SEEDS] Context %s revealed %s... after %d bets", contextID, revealed.ServerSeedHash[:16], revealed.Nonce)
	return revealed, nil
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

// Store implements the seed, bet and round repositories over Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Seed repository

func (s *Store) SaveSeedPair(ctx context.Context, contextID string, pair game.SeedPair) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seed_pairs (context_id, server_seed, server_seed_hash, client_seed, nonce, revealed, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		ON CONFLICT (context_id, server_seed_hash)
		DO UPDATE SET client_seed = EXCLUDED.client_seed, nonce = EXCLUDED.nonce`,
		contextID, pair.ServerSeed, pair.ServerSeedHash, pair.ClientSeed, int64(pair.Nonce), pair.CreatedAt)
	if err != nil {
		return fmt.Errorf("save seed pair: %w", err)
	}
	return nil
}

func (s *Store) ActiveSeedPair(ctx context.Context, contextID string) (game.SeedPair, bool, error) {
	var (
		pair  game.SeedPair
		nonce int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT server_seed, server_seed_hash, client_seed, nonce, created_at
		FROM seed_pairs
		WHERE context_id = $1 AND NOT revealed
		ORDER BY created_at DESC
		LIMIT 1`, contextID).
		Scan(&pair.ServerSeed, &pair.ServerSeedHash, &pair.ClientSeed, &nonce, &pair.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.SeedPair{}, false, nil
	}
	if err != nil {
		return game.SeedPair{}, false, fmt.Errorf("load active seed pair: %w", err)
	}
	pair.Nonce = uint64(nonce)
	return pair, true, nil
}

func (s *Store) MarkRevealed(ctx context.Context, contextID, serverSeedHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE seed_pairs SET revealed = true, revealed_at = now()
		WHERE context_id = $1 AND server_seed_hash = $2`,
		contextID, serverSeedHash)
	if err != nil {
		return fmt.Errorf("mark revealed: %w", err)
	}
	return nil
}

func (s *Store) LastNonce(ctx context.Context, contextID, serverSeedHash string) (uint64, bool, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(GREATEST(
			(SELECT MAX(nonce) FROM bets   WHERE context_id = $1 AND server_seed_hash = $2),
			(SELECT MAX(nonce) FROM rounds WHERE server_seed_hash = $2)
		), -1)`, contextID, serverSeedHash).Scan(&last)
	if err != nil {
		return 0, false, fmt.Errorf("last nonce: %w", err)
	}
	if last < 0 {
		return 0, false, nil
	}
	return uint64(last), true, nil
}

// Bet repository

func (s *Store) SaveBet(ctx context.Context, bet game.Bet) error {
	cfg, err := json.Marshal(bet.Config)
	if err != nil {
		return fmt.Errorf("encode bet config: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bets (id, context_id, round_id, kind, config, stake, server_seed_hash, client_seed, nonce, status, payout, profit, placed_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6::numeric, $7, $8, $9, $10, 0, 0, $11)`,
		bet.ID, bet.ContextID, bet.RoundID, string(bet.Config.Kind), cfg, bet.Stake.String(),
		bet.ServerSeedHash, bet.ClientSeed, int64(bet.Nonce), string(bet.Status), bet.PlacedAt)
	if err != nil {
		return fmt.Errorf("save bet: %w", err)
	}
	return nil
}

func (s *Store) SettleBet(ctx context.Context, bet game.Bet) error {
	outcome, err := json.Marshal(bet.Outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE bets
		SET status = $2, outcome = $3, payout = $4::numeric, profit = $5::numeric, settled_at = $6
		WHERE id = $1 AND status = 'PENDING'`,
		bet.ID, string(bet.Status), outcome, bet.Payout.String(), bet.Profit.String(), bet.SettledAt)
	if err != nil {
		return fmt.Errorf("settle bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bet %s is not pending", game.ErrStateConflict, bet.ID)
	}
	return nil
}

func (s *Store) MarkRefunded(ctx context.Context, betID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE bets SET status = 'REFUNDED', settled_at = now()
		WHERE id = $1 AND status = 'PENDING'`, betID)
	if err != nil {
		return fmt.Errorf("mark refunded: %w", err)
	}
	return nil
}

func (s *Store) BetByID(ctx context.Context, betID string) (game.Bet, error) {
	row := s.pool.QueryRow(ctx, betSelect+` WHERE id = $1`, betID)
	bet, err := scanBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Bet{}, fmt.Errorf("%w: %s", game.ErrBetNotFound, betID)
	}
	return bet, err
}

func (s *Store) History(ctx context.Context, contextID string, limit int) ([]game.Bet, error) {
	rows, err := s.pool.Query(ctx, betSelect+`
		WHERE context_id = $1 AND status = 'SETTLED'
		ORDER BY settled_at DESC
		LIMIT $2`, contextID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()
	return scanBets(rows)
}

func (s *Store) UnsettledBets(ctx context.Context) ([]game.Bet, error) {
	rows, err := s.pool.Query(ctx, betSelect+` WHERE status = 'PENDING' ORDER BY placed_at`)
	if err != nil {
		return nil, fmt.Errorf("load unsettled bets: %w", err)
	}
	defer rows.Close()
	return scanBets(rows)
}

const betSelect = `
	SELECT id, context_id, COALESCE(round_id, ''), config, stake::text, server_seed_hash,
	       client_seed, nonce, status, outcome, payout::text, profit::text, placed_at, settled_at
	FROM bets`

func scanBet(row pgx.Row) (game.Bet, error) {
	var (
		bet       game.Bet
		cfg       []byte
		outcome   []byte
		stake     string
		payout    string
		profit    string
		nonce     int64
		status    string
		settledAt *time.Time
	)
	err := row.Scan(&bet.ID, &bet.ContextID, &bet.RoundID, &cfg, &stake, &bet.ServerSeedHash,
		&bet.ClientSeed, &nonce, &status, &outcome, &payout, &profit, &bet.PlacedAt, &settledAt)
	if err != nil {
		return game.Bet{}, err
	}
	if err := json.Unmarshal(cfg, &bet.Config); err != nil {
		return game.Bet{}, fmt.Errorf("decode bet config: %w", err)
	}
	if len(outcome) > 0 {
		bet.Outcome = &game.Outcome{}
		if err := json.Unmarshal(outcome, bet.Outcome); err != nil {
			return game.Bet{}, fmt.Errorf("decode outcome: %w", err)
		}
	}
	bet.Stake, err = decimal.NewFromString(stake)
	if err != nil {
		return game.Bet{}, fmt.Errorf("decode stake: %w", err)
	}
	bet.Payout, err = decimal.NewFromString(payout)
	if err != nil {
		return game.Bet{}, fmt.Errorf("decode payout: %w", err)
	}
	bet.Profit, err = decimal.NewFromString(profit)
	if err != nil {
		return game.Bet{}, fmt.Errorf("decode profit: %w", err)
	}
	bet.Nonce = uint64(nonce)
	bet.Status = game.BetStatus(status)
	if settledAt != nil {
		bet.SettledAt = *settledAt
	}
	return bet, nil
}

func scanBets(rows pgx.Rows) ([]game.Bet, error) {
	var bets []game.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// Round repository

func (s *Store) SaveRound(ctx context.Context, round game.Round) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rounds (id, phase, server_seed_hash, client_seed, nonce, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		round.ID, string(round.Phase), round.ServerSeedHash, round.ClientSeed, int64(round.Nonce), round.StartedAt)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (s *Store) EndRound(ctx context.Context, roundID string, crashPoint float64, endedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rounds SET phase = 'ENDED', crash_point = $2, ended_at = $3
		WHERE id = $1`, roundID, crashPoint, endedAt)
	if err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	return nil
}

func (s *Store) AbortOpenRounds(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rounds SET phase = 'ENDED', ended_at = now()
		WHERE phase <> 'ENDED'`)
	if err != nil {
		return 0, fmt.Errorf("abort open rounds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

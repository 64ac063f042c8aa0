package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

// statusFor maps the core error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation), errors.Is(err, game.ErrInvalidGameConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, game.ErrBetNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrAlreadyCommitted),
		errors.Is(err, game.ErrRoundInProgress),
		errors.Is(err, game.ErrNothingToReveal),
		errors.Is(err, game.ErrBettingClosed),
		errors.Is(err, game.ErrStateConflict):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrPersistenceFailure), errors.Is(err, game.ErrEntropyUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

// Provably-fair seed handlers

func (s *FiberServer) requestCommitmentHandler(c *fiber.Ctx) error {
	var req struct {
		ContextID string `json:"context_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ContextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}

	hash, err := s.seeds.Commit(c.Context(), req.ContextID)
	if err != nil {
		return fail(c, err)
	}
	snap, err := s.seeds.Snapshot(c.Context(), req.ContextID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"server_seed_hash": hash,
		"client_seed":      snap.ClientSeed,
	})
}

func (s *FiberServer) getSeedsHandler(c *fiber.Ctx) error {
	contextID := c.Query("context_id")
	if contextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}
	snap, err := s.seeds.Snapshot(c.Context(), contextID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"server_seed_hash": snap.ServerSeedHash,
		"client_seed":      snap.ClientSeed,
		"nonce":            snap.Nonce,
	})
}

func (s *FiberServer) setClientSeedHandler(c *fiber.Ctx) error {
	var req struct {
		ContextID  string `json:"context_id"`
		ClientSeed string `json:"client_seed"`
	}
	if err := c.BodyParser(&req); err != nil || req.ContextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}
	if err := s.seeds.SetClientSeed(c.Context(), req.ContextID, req.ClientSeed); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"client_seed": req.ClientSeed})
}

func (s *FiberServer) revealSeedHandler(c *fiber.Ctx) error {
	var req struct {
		ContextID string `json:"context_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ContextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}
	revealed, err := s.seeds.Reveal(c.Context(), req.ContextID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(revealed)
}

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req struct {
		ServerSeed     string          `json:"server_seed"`
		ServerSeedHash string          `json:"server_seed_hash"`
		ClientSeed     string          `json:"client_seed"`
		Nonce          uint64          `json:"nonce"`
		Config         game.GameConfig `json:"config"`
		Outcome        game.Outcome    `json:"outcome"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	valid, err := game.Verify(req.ServerSeed, req.ServerSeedHash, req.ClientSeed, req.Nonce, req.Config, req.Outcome)
	if err != nil {
		return fail(c, err)
	}
	derived, err := game.Derive(req.ServerSeed, req.ClientSeed, req.Nonce, req.Config)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"valid":   valid,
		"outcome": derived,
	})
}

// Instant game handlers

func (s *FiberServer) playHandler(c *fiber.Ctx) error {
	var req struct {
		ContextID string          `json:"context_id"`
		Stake     decimal.Decimal `json:"stake"`
		Config    game.GameConfig `json:"config"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ContextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}

	bet, err := s.ledger.Play(c.Context(), req.ContextID, req.Config, req.Stake)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(betResponse(bet))
}

func (s *FiberServer) getOutcomeHandler(c *fiber.Ctx) error {
	betID := c.Params("betId")
	bet, err := s.ledger.Outcome(c.Context(), betID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(betResponse(bet))
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	contextID := c.Query("context_id")
	if contextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	bets, err := s.ledger.History(c.Context(), contextID, limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]fiber.Map, 0, len(bets))
	for _, bet := range bets {
		out = append(out, betResponse(bet))
	}
	return c.JSON(fiber.Map{"bets": out})
}

func betResponse(bet game.Bet) fiber.Map {
	resp := fiber.Map{
		"bet_id":           bet.ID,
		"context_id":       bet.ContextID,
		"kind":             bet.Config.Kind,
		"stake":            bet.Stake,
		"server_seed_hash": bet.ServerSeedHash,
		"client_seed":      bet.ClientSeed,
		"nonce":            bet.Nonce,
		"status":           bet.Status,
		"payout":           bet.Payout,
		"profit":           bet.Profit,
		"placed_at":        bet.PlacedAt,
	}
	if bet.RoundID != "" {
		resp["round_id"] = bet.RoundID
	}
	if bet.Outcome != nil {
		resp["outcome"] = bet.Outcome
	}
	return resp
}

// Crash round handlers

func (s *FiberServer) crashBetHandler(c *fiber.Ctx) error {
	var req game.CrashBetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ContextID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id is required"})
	}

	bet, err := s.scheduler.PlaceBet(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(betResponse(bet))
}

func (s *FiberServer) crashCashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ContextID == "" || req.BetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "context_id and bet_id are required"})
	}

	resp, err := s.scheduler.Cashout(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"multiplier": resp.Multiplier,
		"payout":     resp.Payout,
	})
}

func (s *FiberServer) crashStateHandler(c *fiber.Ctx) error {
	state := s.scheduler.CurrentRound()
	if state == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active round"})
	}
	return c.JSON(state)
}

// Wallet handlers

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "User ID is required"})
	}
	balance, err := s.wallet.Balance(c.Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "User ID is required"})
	}
	var body struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.wallet.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
	})
}

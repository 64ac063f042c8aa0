package server

import (
	"context"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	fair := api.Group("/fair")
	fair.Post("/commitment", s.requestCommitmentHandler)
	fair.Get("/seeds", s.getSeedsHandler)
	fair.Put("/client-seed", s.setClientSeedHandler)
	fair.Post("/reveal", s.revealSeedHandler)
	fair.Post("/verify", s.verifyHandler)

	api.Post("/game/bet", s.playHandler)
	api.Get("/game/bet/:betId", s.getOutcomeHandler)
	api.Get("/game/history", s.historyHandler)

	api.Post("/crash/bet", s.crashBetHandler)
	api.Post("/crash/cashout", s.crashCashoutHandler)
	api.Get("/crash/state", s.crashStateHandler)

	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)

	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// gameWebSocketHandler streams round and bet events to the client and
// sends the current round snapshot on connect.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	contextID := conn.Query("context_id", "anonymous")
	log.Printf("[WS] New connection: %s", contextID)

	client := s.hub.RegisterClient(conn, contextID)

	if state := s.scheduler.CurrentRound(); state != nil {
		client.SendEvent(game.Event{Type: "initial_state", Data: state})
	} else if s.rounds != nil {
		// Between rounds; replay the last cached round event instead.
		if event, ok, err := s.rounds.LastEvent(context.Background()); err == nil && ok {
			client.SendEvent(event)
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("[WS] Read error for %s: %v", contextID, err)
			s.hub.UnregisterClient(conn)
			return
		}
	}
}

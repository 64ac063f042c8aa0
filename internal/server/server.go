package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/cache"
	"github.com/ezsweeps247/miraclezgambot-sub007/internal/database"
	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

type FiberServer struct {
	*fiber.App

	db        database.Service
	cache     cache.Service
	wallet    *cache.RedisWallet
	rounds    *cache.RoundCache
	seeds     *game.SeedStore
	ledger    *game.Ledger
	scheduler *game.Scheduler
	hub       *game.Hub

	cancel context.CancelFunc
}

// fanoutPublisher delivers each event to every downstream publisher.
type fanoutPublisher []game.Publisher

func (p fanoutPublisher) Publish(event game.Event) {
	for _, pub := range p {
		pub.Publish(event)
	}
}

func New() *FiberServer {
	db := database.New()
	store := database.NewStore(db.Pool())

	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for wallet functionality")
	}
	wallet := cache.NewRedisWallet(redisService.GetClient())
	rounds := cache.NewRoundCache(redisService.GetClient())

	hub := game.NewHub()
	pub := fanoutPublisher{hub, rounds}
	seeds := game.NewSeedStore(store)
	ledger := game.NewLedger(seeds, wallet, store, hub)
	scheduler := game.NewScheduler(seeds, ledger, store, pub, game.DefaultSchedulerConfig())

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "miraclez",
			AppName:       "miraclez",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:        db,
		cache:     redisService,
		wallet:    wallet,
		rounds:    rounds,
		seeds:     seeds,
		ledger:    ledger,
		scheduler: scheduler,
		hub:       hub,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	server.cancel = cancel

	go hub.Run()
	go scheduler.Run(ctx)

	log.Println("[SERVER] Betting core started")

	return server
}

// Shutdown stops the round scheduler first so in-flight bets settle or
// refund, then closes the connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.cancel != nil {
		s.cancel()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

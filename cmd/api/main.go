package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/server"
)

func main() {
	srv := server.New()
	srv.RegisterFiberRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := srv.Listen(":" + port); err != nil {
			log.Fatalf("[SERVER] Listen failed: %v", err)
		}
	}()
	log.Printf("[SERVER] Listening on :%s", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := srv.Shutdown(); err != nil {
		log.Printf("[SERVER] Shutdown error: %v", err)
	}
	if err := srv.App.Shutdown(); err != nil {
		log.Printf("[SERVER] HTTP shutdown error: %v", err)
	}
	log.Println("[SERVER] Stopped")
}

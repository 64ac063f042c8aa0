package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

const (
	roundEventKey = "fair:round:last_event"
	roundEventTTL = 30 * time.Second
)

// RoundCache mirrors the latest round event into Redis so reconnecting
// clients catch up without waiting for the next broadcast. Writes go
// through a buffered channel drained by a single goroutine, so Publish
// never blocks the round loop on Redis.
type RoundCache struct {
	client *redis.Client
	events chan game.Event
}

func NewRoundCache(client *redis.Client) *RoundCache {
	rc := &RoundCache{
		client: client,
		events: make(chan game.Event, 64),
	}
	go rc.writeLoop()
	return rc
}

func (rc *RoundCache) writeLoop() {
	for event := range rc.events {
		rc.store(event)
	}
}

func isRoundEvent(eventType string) bool {
	switch eventType {
	case game.EventRoundWaiting, game.EventRoundRunning, game.EventRoundTick, game.EventRoundCrashed:
		return true
	}
	return false
}

// Publish satisfies the broadcast contract; only round events are
// mirrored, bet events stay hub-only. A full queue drops the event;
// the next tick overwrites the key anyway.
func (rc *RoundCache) Publish(event game.Event) {
	if !isRoundEvent(event.Type) {
		return
	}
	select {
	case rc.events <- event:
	default:
	}
}

func (rc *RoundCache) store(event game.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[CACHE] Marshal round event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rc.client.Set(ctx, roundEventKey, payload, roundEventTTL).Err(); err != nil {
		log.Printf("[CACHE] Cache round event: %v", err)
	}
}

// LastEvent returns the most recent round event, if one is cached.
func (rc *RoundCache) LastEvent(ctx context.Context) (game.Event, bool, error) {
	payload, err := rc.client.Get(ctx, roundEventKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Event{}, false, nil
	}
	if err != nil {
		return game.Event{}, false, err
	}
	var event game.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return game.Event{}, false, err
	}
	return event, true, nil
}

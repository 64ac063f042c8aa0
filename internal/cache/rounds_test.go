package cache

import (
	"testing"
	"time"

	"github.com/ezsweeps247/miraclezgambot-sub007/internal/game"
)

func TestIsRoundEvent(t *testing.T) {
	tests := []struct {
		eventType string
		want      bool
	}{
		{eventType: game.EventRoundWaiting, want: true},
		{eventType: game.EventRoundRunning, want: true},
		{eventType: game.EventRoundTick, want: true},
		{eventType: game.EventRoundCrashed, want: true},
		{eventType: game.EventBetPlaced, want: false},
		{eventType: game.EventBetSettled, want: false},
		{eventType: game.EventCashout, want: false},
		{eventType: "unknown", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			if got := isRoundEvent(tt.eventType); got != tt.want {
				t.Errorf("isRoundEvent(%s) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestRoundCache_PublishNeverBlocks(t *testing.T) {
	// No writer goroutine draining the queue; Publish must still
	// return promptly once the buffer is full.
	rc := &RoundCache{events: make(chan game.Event, 2)}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rc.Publish(game.Event{Type: game.EventRoundTick})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	if got := len(rc.events); got != 2 {
		t.Errorf("queued events = %d, want 2", got)
	}
}

func TestRoundCache_Interface(t *testing.T) {
	// The cache plugs into the same broadcast fanout as the hub
	var _ game.Publisher = (*RoundCache)(nil)
}

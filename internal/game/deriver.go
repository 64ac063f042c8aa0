package game

import (
	"math"
	"slices"
)

// Outcome is the derived result for one bet. Only the field matching
// Kind is meaningful.
type Outcome struct {
	Kind       GameKind `json:"kind"`
	CoinSide   CoinSide `json:"coin_side,omitempty"`
	Roll       int      `json:"roll,omitempty"`
	ReelStops  []int    `json:"reel_stops,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty"`
}

// Derive maps (serverSeed, clientSeed, nonce, config) onto a game
// outcome. It is pure: the same four inputs return the same outcome on
// every call, forever. Players recompute it after reveal to verify the
// result they were shown live.
func Derive(serverSeed, clientSeed string, nonce uint64, cfg GameConfig) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}

	bs := newByteStream(serverSeed, clientSeed, nonce, 0)

	switch cfg.Kind {
	case GameCoinFlip:
		side := CoinHeads
		if bs.next()%2 == 1 {
			side = CoinTails
		}
		return Outcome{Kind: GameCoinFlip, CoinSide: side}, nil

	case GameDice:
		roll := boundedUint32(bs, uint32(cfg.Dice.Sides))
		return Outcome{Kind: GameDice, Roll: int(roll) + 1}, nil

	case GameSlots:
		stops := make([]int, len(cfg.Slots.ReelLengths))
		for i, length := range cfg.Slots.ReelLengths {
			stops[i] = int(boundedUint32(bs, uint32(length)))
		}
		return Outcome{Kind: GameSlots, ReelStops: stops}, nil

	case GameCrash:
		return Outcome{Kind: GameCrash, Multiplier: crashPoint(bs, cfg.Crash)}, nil
	}

	// Validate rejects unknown kinds.
	return Outcome{}, ErrInvalidGameConfig
}

// boundedUint32 reduces 32-bit draws into [0, n) without modulo bias:
// draws above the widest whole multiple of n below 2^32 are rejected and
// redrawn, so every residue is equally likely.
func boundedUint32(bs *byteStream, n uint32) uint32 {
	limit := (uint64(1) << 32) / uint64(n) * uint64(n)
	for {
		v := bs.uint32n()
		if uint64(v) < limit {
			return v % n
		}
	}
}

// crashPoint maps a 52-bit draw onto a multiplier. The exponential-style
// transform concentrates mass near 1.00x and makes high multipliers
// rare; the house edge shaves every payout proportionally and implies a
// matching rate of instant 1.00x crashes.
func crashPoint(bs *byteStream, p *CrashParams) float64 {
	r := float64(bs.uint52()) / (1 << 52)
	if r >= 1 {
		return p.MaxMultiplier
	}
	m := math.Floor(100*(1-p.HouseEdge)/(1-r)) / 100
	if m < MinCrashMultiplier {
		return MinCrashMultiplier
	}
	if m > p.MaxMultiplier {
		return p.MaxMultiplier
	}
	return m
}

// Equal reports whether two outcomes are the same result.
func (o Outcome) Equal(other Outcome) bool {
	return o.Kind == other.Kind &&
		o.CoinSide == other.CoinSide &&
		o.Roll == other.Roll &&
		slices.Equal(o.ReelStops, other.ReelStops) &&
		o.Multiplier == other.Multiplier
}

// Verify recomputes an outcome from revealed seed data and checks it
// against both the published commitment and the claimed result.
func Verify(serverSeed, serverSeedHash, clientSeed string, nonce uint64, cfg GameConfig, claimed Outcome) (bool, error) {
	if HashSeed(serverSeed) != serverSeedHash {
		return false, nil
	}
	derived, err := Derive(serverSeed, clientSeed, nonce, cfg)
	if err != nil {
		return false, err
	}
	return derived.Equal(claimed), nil
}

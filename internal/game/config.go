package game

import "fmt"

type GameKind string

const (
	GameCoinFlip GameKind = "coinflip"
	GameDice     GameKind = "dice"
	GameSlots    GameKind = "slots"
	GameCrash    GameKind = "crash"
)

type CoinSide string

const (
	CoinHeads CoinSide = "HEADS"
	CoinTails CoinSide = "TAILS"
)

const (
	DefaultHouseEdge   = 0.01
	MaxCrashMultiplier = 1000000.00
	MinCrashMultiplier = 1.00

	maxDiceSides  = 10000
	maxSlotsReels = 10
	maxReelLength = 512
)

// CoinFlipParams holds the player's pick for a 50/50 flip.
type CoinFlipParams struct {
	Pick CoinSide `json:"pick"`
}

// DiceParams holds the die range and the face the player picked.
type DiceParams struct {
	Sides int `json:"sides"`
	Pick  int `json:"pick"`
}

// SlotsParams holds the reel layout; each entry is one reel's length.
type SlotsParams struct {
	ReelLengths []int `json:"reel_lengths"`
}

// CrashParams holds the house edge and multiplier cap for crash rounds.
type CrashParams struct {
	HouseEdge     float64 `json:"house_edge"`
	MaxMultiplier float64 `json:"max_multiplier"`
}

// GameConfig is a tagged variant: Kind selects which parameter struct is
// populated. Keeping the variants explicit lets Derive switch
// exhaustively per game kind instead of probing a parameter bag.
type GameConfig struct {
	Kind  GameKind        `json:"kind"`
	Coin  *CoinFlipParams `json:"coin,omitempty"`
	Dice  *DiceParams     `json:"dice,omitempty"`
	Slots *SlotsParams    `json:"slots,omitempty"`
	Crash *CrashParams    `json:"crash,omitempty"`
}

// DefaultCrashConfig is the config used by the continuous crash round.
func DefaultCrashConfig() GameConfig {
	return GameConfig{
		Kind: GameCrash,
		Crash: &CrashParams{
			HouseEdge:     DefaultHouseEdge,
			MaxMultiplier: MaxCrashMultiplier,
		},
	}
}

// Validate checks the parameters for the tagged kind. All failures wrap
// ErrInvalidGameConfig.
func (c GameConfig) Validate() error {
	switch c.Kind {
	case GameCoinFlip:
		if c.Coin == nil {
			return fmt.Errorf("%w: missing coinflip params", ErrInvalidGameConfig)
		}
		if c.Coin.Pick != CoinHeads && c.Coin.Pick != CoinTails {
			return fmt.Errorf("%w: pick must be %s or %s", ErrInvalidGameConfig, CoinHeads, CoinTails)
		}
	case GameDice:
		if c.Dice == nil {
			return fmt.Errorf("%w: missing dice params", ErrInvalidGameConfig)
		}
		if c.Dice.Sides < 2 || c.Dice.Sides > maxDiceSides {
			return fmt.Errorf("%w: die range must be within [2, %d], got %d", ErrInvalidGameConfig, maxDiceSides, c.Dice.Sides)
		}
		if c.Dice.Pick < 1 || c.Dice.Pick > c.Dice.Sides {
			return fmt.Errorf("%w: pick %d outside die range [1, %d]", ErrInvalidGameConfig, c.Dice.Pick, c.Dice.Sides)
		}
	case GameSlots:
		if c.Slots == nil {
			return fmt.Errorf("%w: missing slots params", ErrInvalidGameConfig)
		}
		if n := len(c.Slots.ReelLengths); n < 1 || n > maxSlotsReels {
			return fmt.Errorf("%w: reel count must be within [1, %d], got %d", ErrInvalidGameConfig, maxSlotsReels, n)
		}
		for i, length := range c.Slots.ReelLengths {
			if length < 1 || length > maxReelLength {
				return fmt.Errorf("%w: reel %d length must be within [1, %d], got %d", ErrInvalidGameConfig, i, maxReelLength, length)
			}
		}
	case GameCrash:
		if c.Crash == nil {
			return fmt.Errorf("%w: missing crash params", ErrInvalidGameConfig)
		}
		if c.Crash.HouseEdge < 0 || c.Crash.HouseEdge >= 1 {
			return fmt.Errorf("%w: house edge must be within [0, 1), got %f", ErrInvalidGameConfig, c.Crash.HouseEdge)
		}
		if c.Crash.MaxMultiplier < MinCrashMultiplier {
			return fmt.Errorf("%w: max multiplier must be at least %.2f", ErrInvalidGameConfig, MinCrashMultiplier)
		}
	default:
		return fmt.Errorf("%w: unknown game kind %q", ErrInvalidGameConfig, c.Kind)
	}
	return nil
}

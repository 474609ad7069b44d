package urlgen

import (
	"errors"
	"fmt"

	"github.com/sqids/sqids-go"
)

// Strategy names accepted by NewStrategy.
const (
	StrategySequence = "sequence"
	StrategySqids    = "sqids"
)

// ErrUnknownStrategy is returned for an unrecognised strategy name.
var ErrUnknownStrategy = errors.New("unknown mapping strategy")

// Strategy maps a long URL and a freshly claimed sequence ID to a short URL.
// Distinct IDs must yield distinct short URLs.
type Strategy interface {
	Map(longURL string, id uint64) (string, error)
	Name() string
}

// SequenceStrategy encodes the sequence ID with the codec. The long URL is
// not consulted.
type SequenceStrategy struct {
	codec *Codec
}

// NewSequenceStrategy returns the default strategy.
func NewSequenceStrategy(codec *Codec) *SequenceStrategy {
	return &SequenceStrategy{codec: codec}
}

func (s *SequenceStrategy) Map(_ string, id uint64) (string, error) {
	return s.codec.Encode(id), nil
}

func (s *SequenceStrategy) Name() string { return StrategySequence }

// SqidsStrategy obfuscates the sequence ID with sqids so consecutive
// short URLs do not look consecutive. Tokens use the codec's alphabet
// and are padded to at least minLength symbols.
type SqidsStrategy struct {
	sq *sqids.Sqids
}

// NewSqidsStrategy builds a sqids encoder over the codec's alphabet.
// sqids needs at least three symbols.
func NewSqidsStrategy(codec *Codec, minLength uint8) (*SqidsStrategy, error) {
	sq, err := sqids.New(sqids.Options{
		Alphabet:  codec.Alphabet(),
		MinLength: minLength,
	})
	if err != nil {
		return nil, fmt.Errorf("sqids init failed: %w", err)
	}
	return &SqidsStrategy{sq: sq}, nil
}

func (s *SqidsStrategy) Map(_ string, id uint64) (string, error) {
	return s.sq.Encode([]uint64{id})
}

func (s *SqidsStrategy) Name() string { return StrategySqids }

// NewStrategy returns the strategy registered under name. An empty name
// selects the sequence strategy.
func NewStrategy(name string, codec *Codec, sqidsMinLength uint8) (Strategy, error) {
	switch name {
	case "", StrategySequence:
		return NewSequenceStrategy(codec), nil
	case StrategySqids:
		return NewSqidsStrategy(codec, sqidsMinLength)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

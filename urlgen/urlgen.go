// Package urlgen turns sequence IDs into short URL tokens.
package urlgen

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// AllowedCharacters is the set an alphabet may be drawn from.
// None of these characters need escaping inside a URL path segment.
const AllowedCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// Predefined alphabets, selectable by name from the configuration.
const (
	Base4Alphabet  = "abcd"
	Base8Alphabet  = "abcdefgh"
	Base36Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	Base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var namedAlphabets = map[string]string{
	"base4":  Base4Alphabet,
	"base8":  Base8Alphabet,
	"base36": Base36Alphabet,
	"base62": Base62Alphabet,
}

// Alphabet validation and decoding errors.
var (
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 2 symbols")
	ErrAlphabetTooLong  = fmt.Errorf("alphabet cannot be larger than %d characters", len(AllowedCharacters))
	ErrIllegalSymbol    = errors.New("symbol is not allowed in alphabet")
	ErrDuplicateSymbol  = errors.New("symbol appears more than once in alphabet")
	ErrInvalidToken     = errors.New("token is not a valid encoding")
	ErrTokenOverflow    = errors.New("token exceeds the 64-bit sequence range")
)

// ResolveAlphabet returns the symbols of a named alphabet ("base36"),
// or the input unchanged when it is not a known name.
func ResolveAlphabet(nameOrSymbols string) string {
	if symbols, ok := namedAlphabets[strings.ToLower(nameOrSymbols)]; ok {
		return symbols
	}
	return nameOrSymbols
}

// ValidateAlphabet checks that every symbol is allowed and distinct and
// that the alphabet yields a usable base.
func ValidateAlphabet(alphabet string) error {
	if len(alphabet) > len(AllowedCharacters) {
		return ErrAlphabetTooLong
	}
	var seen [256]bool
	for i := 0; i < len(alphabet); i++ {
		ch := alphabet[i]
		if strings.IndexByte(AllowedCharacters, ch) < 0 {
			return fmt.Errorf("%w: %q", ErrIllegalSymbol, ch)
		}
		if seen[ch] {
			return fmt.Errorf("%w: %q", ErrDuplicateSymbol, ch)
		}
		seen[ch] = true
	}
	if len(alphabet) < 2 {
		return ErrAlphabetTooShort
	}
	return nil
}

// Codec converts between non-negative integers and their positional
// representation in a configured alphabet. Index 0 is the zero digit.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	alphabet string
	base     uint64
	index    [256]int
}

// NewCodec validates the alphabet and returns a codec for it.
func NewCodec(alphabet string) (*Codec, error) {
	if err := ValidateAlphabet(alphabet); err != nil {
		return nil, err
	}

	c := &Codec{
		alphabet: alphabet,
		base:     uint64(len(alphabet)),
	}
	for i := range c.index {
		c.index[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		c.index[alphabet[i]] = i
	}
	return c, nil
}

// MustNewCodec is like NewCodec but panics on an invalid alphabet.
func MustNewCodec(alphabet string) *Codec {
	c, err := NewCodec(alphabet)
	if err != nil {
		panic("urlgen: " + err.Error())
	}
	return c
}

// Alphabet returns the ordered symbols of the codec.
func (c *Codec) Alphabet() string {
	return c.alphabet
}

// Base returns the radix of the encoding.
func (c *Codec) Base() int {
	return int(c.base)
}

// Encode returns the most-significant-digit-first representation of n.
// Outputs are not padded, so only n == 0 starts with the zero symbol.
func (c *Codec) Encode(n uint64) string {
	if n == 0 {
		return c.alphabet[:1]
	}

	var sb strings.Builder
	for n > 0 {
		sb.WriteByte(c.alphabet[n%c.base])
		n /= c.base
	}

	// digits were produced least significant first
	digits := []byte(sb.String())
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// Decode is the inverse of Encode.
func (c *Codec) Decode(token string) (uint64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	if len(token) > 1 && token[0] == c.alphabet[0] {
		return 0, fmt.Errorf("%w: leading zero symbol in %q", ErrInvalidToken, token)
	}

	var n uint64
	for i := 0; i < len(token); i++ {
		digit := c.index[token[i]]
		if digit < 0 {
			return 0, fmt.Errorf("%w: unknown symbol %q at position %d", ErrInvalidToken, token[i], i)
		}
		if n > (math.MaxUint64-uint64(digit))/c.base {
			return 0, ErrTokenOverflow
		}
		n = n*c.base + uint64(digit)
	}
	return n, nil
}

// Capacity returns base^length, the number of sequence IDs that encode to
// at most length symbols. The first ID past that needs length+1 symbols.
// The result saturates at math.MaxUint64.
func (c *Codec) Capacity(length int) uint64 {
	if length <= 0 {
		return 0
	}
	capacity := uint64(1)
	for i := 0; i < length; i++ {
		if capacity > math.MaxUint64/c.base {
			return math.MaxUint64
		}
		capacity *= c.base
	}
	return capacity
}

package code

import (
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"
)

const (
	MinLength = 6
	MaxLength = 8
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type Generator interface {
	Generate(length int) string
}

// NewGenerator returns a generator backed by lo's shared random source.
// It is safe for concurrent use.
func NewGenerator() Generator {
	return randomGenerator{}
}

type randomGenerator struct{}

func (randomGenerator) Generate(length int) string {
	return lo.RandomString(clamp(length), lo.AlphanumericCharset)
}

// NewSeededGenerator returns a generator whose output is fully determined by seed.
func NewSeededGenerator(seed uint64) Generator {
	return &seededGenerator{rnd: rand.New(rand.NewPCG(seed, seed))}
}

type seededGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (g *seededGenerator) Generate(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := make([]byte, clamp(length))
	for i := range code {
		code[i] = charset[g.rnd.IntN(len(charset))]
	}
	return string(code)
}

// LengthForAttempt cycles through the allowed lengths as attempt grows.
func LengthForAttempt(attempt int) int {
	return MinLength + attempt%(MaxLength-MinLength+1)
}

// IsValid reports whether s has the shape of a short code.
func IsValid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isAlnum := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

func clamp(length int) int {
	return min(max(length, MinLength), MaxLength)
}

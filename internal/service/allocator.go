package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/notifier"
	"github.com/attendly/attendly/internal/repository"
)

// Verification-code alphabets by event mode. Ticketed events get numeric
// codes because they are keyed in on payment terminals; registration
// events get alphabetic codes so they are not mistaken for phone or ID
// numbers. Widths are fixed.
const (
	numericAlphabet = "0123456789"
	numericWidth    = 8

	alphaAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphaWidth    = 6

	shortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shortCodeWidth    = 10

	maxAllocateAttempts = 5
)

// ErrAllocatorExhausted means the bounded collision retries ran out: the
// code space is too small for the event's scale. This is a configuration
// defect, not user error, so allocation failures of this kind also raise
// an operational alert.
var ErrAllocatorExhausted = errors.New("verification code space exhausted")

type CodeAllocator struct {
	events EventPublisher
}

func NewCodeAllocator(events EventPublisher) *CodeAllocator {
	return &CodeAllocator{
		events: events,
	}
}

// Generate draws one random fixed-width code for the event mode without
// any uniqueness guarantee.
func (a *CodeAllocator) Generate(mode domain.EventMode) (string, error) {
	if mode == domain.EventModeTicketed {
		return draw(numericAlphabet, numericWidth)
	}
	return draw(alphaAlphabet, alphaWidth)
}

// Allocate draws codes until commit accepts one. commit must persist the
// code and fail with repository.ErrCodeTaken on a uniqueness collision;
// any other failure aborts the allocation as-is. Exhausting the retry
// budget is fatal.
func (a *CodeAllocator) Allocate(ctx context.Context, mode domain.EventMode, commit func(code string) error) (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := a.Generate(mode)
		if err != nil {
			return "", fmt.Errorf("a.Generate -> %w", err)
		}

		err = commit(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return "", err
		}
	}

	zap.L().Error("verification code allocation exhausted retries",
		zap.String("mode", string(mode)),
		zap.Int("attempts", maxAllocateAttempts),
	)
	if a.events != nil {
		if err := a.events.Publish(ctx, notifier.KeyAllocatorExhausted, map[string]interface{}{
			"mode":     string(mode),
			"attempts": maxAllocateAttempts,
		}); err != nil {
			zap.L().Warn("failed to publish allocator alert", zap.Error(err))
		}
	}

	return "", ErrAllocatorExhausted
}

// GenerateShortCode draws the event-unique primary lookup code printed on
// registration confirmations. The alphabet omits 0/O/1/I to survive being
// read out loud.
func GenerateShortCode() (string, error) {
	return draw(shortCodeAlphabet, shortCodeWidth)
}

func draw(alphabet string, width int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	code := make([]byte, width)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("rand.Int -> %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}

	return string(code), nil
}

// Package issuance orchestrates the document issuance pipeline: reserving a
// verification code, inserting the row, rendering the PDF, storing the
// artifact, and finalizing the record.
package issuance

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
)

// codeAlphabet excludes 0, 1, I and O, which are easily confused when a
// code is handwritten or read aloud.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	// DefaultCodeLength is the length of normally issued verification codes
	DefaultCodeLength = 8
	// MaxCodeLength bounds the degraded fallback code, matching the column width
	MaxCodeLength = 14
	// defaultMaxAttempts bounds the uniqueness pre-check loop
	defaultMaxAttempts = 5
)

// CodeGenerator produces collision-resistant verification codes. The
// pre-check against the repository only makes collisions rare; the
// database unique constraint is what actually guarantees uniqueness.
type CodeGenerator struct {
	repo   document.Repository
	logger *zap.Logger
}

// NewCodeGenerator creates a code generator backed by the document repository
func NewCodeGenerator(repo document.Repository, logger *zap.Logger) *CodeGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeGenerator{repo: repo, logger: logger}
}

// Generate draws length cryptographically random bytes and maps each onto
// the alphabet. It carries no uniqueness guarantee by itself.
func (g *CodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// ReserveUnique generates candidates until one is not already taken, up to
// maxAttempts. When every attempt collides it falls back to a fresh code
// with a base-36 timestamp suffix, truncated to MaxCodeLength. The
// fallback is not re-checked against the store; with this alphabet and
// length the path is practically unreachable and the insert-time
// constraint still backstops it.
func (g *CodeGenerator) ReserveUnique(ctx context.Context, length, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := g.Generate(length)
		if err != nil {
			return "", err
		}

		exists, err := g.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code availability: %w", err)
		}
		if !exists {
			return code, nil
		}

		g.logger.Warn("verification code collision on pre-check",
			zap.String("code", code),
			zap.Int("attempt", attempt+1))
	}

	code, err := g.Generate(length)
	if err != nil {
		return "", err
	}
	suffix := strings.ToUpper(strconv.FormatInt(time.Now().Unix(), 36))
	fallback := code + suffix
	if len(fallback) > MaxCodeLength {
		fallback = fallback[:MaxCodeLength]
	}

	g.logger.Error("exhausted code generation attempts, using timestamp fallback",
		zap.Int("attempts", maxAttempts),
		zap.String("fallback", fallback))

	return fallback, nil
}

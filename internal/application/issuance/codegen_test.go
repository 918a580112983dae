package issuance

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCodeGenerator_Generate(t *testing.T) {
	gen := NewCodeGenerator(nil, zap.NewNop())

	for i := 0; i < 50; i++ {
		code, err := gen.Generate(DefaultCodeLength)
		require.NoError(t, err)
		assert.Len(t, code, DefaultCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in %s", c, code)
		}
	}
}

func TestCodeGenerator_GenerateExcludesAmbiguousCharacters(t *testing.T) {
	assert.NotContains(t, codeAlphabet, "0")
	assert.NotContains(t, codeAlphabet, "1")
	assert.NotContains(t, codeAlphabet, "I")
	assert.NotContains(t, codeAlphabet, "O")
	assert.Len(t, codeAlphabet, 32)
}

func TestCodeGenerator_GenerateDefaultsLength(t *testing.T) {
	gen := NewCodeGenerator(nil, zap.NewNop())

	code, err := gen.Generate(0)
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
}

func TestCodeGenerator_ReserveUnique(t *testing.T) {
	repo := new(MockDocumentRepository)
	repo.On("ExistsByCode", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()

	gen := NewCodeGenerator(repo, zap.NewNop())

	code, err := gen.ReserveUnique(context.Background(), DefaultCodeLength, 3)
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
	repo.AssertExpectations(t)
}

func TestCodeGenerator_ReserveUniqueRetriesOnCollision(t *testing.T) {
	repo := new(MockDocumentRepository)
	repo.On("ExistsByCode", mock.Anything, mock.AnythingOfType("string")).Return(true, nil).Once()
	repo.On("ExistsByCode", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()

	gen := NewCodeGenerator(repo, zap.NewNop())

	code, err := gen.ReserveUnique(context.Background(), DefaultCodeLength, 3)
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
	repo.AssertExpectations(t)
}

func TestCodeGenerator_ReserveUniqueFallback(t *testing.T) {
	repo := new(MockDocumentRepository)
	repo.On("ExistsByCode", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

	gen := NewCodeGenerator(repo, zap.NewNop())

	code, err := gen.ReserveUnique(context.Background(), DefaultCodeLength, 3)
	require.NoError(t, err)

	// Degraded path: fresh code plus timestamp suffix, bounded by the column width
	assert.Greater(t, len(code), DefaultCodeLength)
	assert.LessOrEqual(t, len(code), MaxCodeLength)
	repo.AssertNumberOfCalls(t, "ExistsByCode", 3)
}

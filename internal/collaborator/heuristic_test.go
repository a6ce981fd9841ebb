package collaborator_test

import (
	"context"
	"math"
	"testing"

	"github.com/scrypster/mnemora/internal/collaborator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicEmbedder_Deterministic(t *testing.T) {
	e := collaborator.HeuristicEmbedder{}
	a, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimensions())
}

func TestHeuristicEmbedder_Normalized(t *testing.T) {
	e := collaborator.HeuristicEmbedder{}
	v, err := e.Embed(context.Background(), "lorem ipsum dolor sit amet")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestHeuristicEmbedder_DifferentTextDiffers(t *testing.T) {
	e := collaborator.HeuristicEmbedder{}
	a, _ := e.Embed(context.Background(), "alpha beta gamma")
	b, _ := e.Embed(context.Background(), "completely different words here")
	assert.NotEqual(t, a, b)
}

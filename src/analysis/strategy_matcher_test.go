package analysis

import (
	"testing"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surveyFixture() [][]string {
	// Five questions, one answer each.
	return [][]string{
		{"value", "long-term"},
		{"dividend"},
		{"low-risk"},
		{"domestic"},
		{"large-cap"},
	}
}

func TestMatchStrategiesScoresByIntersectionRatio(t *testing.T) {
	strategies := []models.MStrategy{
		{Name: "Dividend Value", Tags: []string{"value", "dividend", "large-cap", "low-risk"}},
		{Name: "Momentum Growth", Tags: []string{"momentum", "growth", "high-risk", "short-term"}},
		{Name: "Index Core", Tags: []string{"large-cap", "domestic"}},
	}

	scores := MatchStrategies(strategies, surveyFixture())
	require.Len(t, scores, 3)

	// Both full matches score 1.0; the tie falls back to name order.
	assert.Equal(t, "Dividend Value", scores[0].Strategy.Name)
	assert.Equal(t, 1.0, scores[0].Score)
	assert.Equal(t, "Index Core", scores[1].Strategy.Name)
	assert.Equal(t, 1.0, scores[1].Score)
	assert.Equal(t, "Momentum Growth", scores[2].Strategy.Name)
	assert.Equal(t, 0.0, scores[2].Score)
}

func TestMatchStrategiesPartialOverlap(t *testing.T) {
	strategies := []models.MStrategy{
		{Name: "Barbell", Tags: []string{"low-risk", "high-risk", "overseas", "value"}},
	}

	scores := MatchStrategies(strategies, surveyFixture())
	require.Len(t, scores, 1)
	assert.InDelta(t, 0.5, scores[0].Score, 1e-9)
	assert.Equal(t, []string{"low-risk", "value"}, scores[0].Matched)
}

func TestMatchStrategiesNormalizesAndDeduplicates(t *testing.T) {
	strategies := []models.MStrategy{
		{Name: "Shouty", Tags: []string{"VALUE", " value ", "Dividend"}},
	}

	scores := MatchStrategies(strategies, surveyFixture())
	require.Len(t, scores, 1)
	// Two distinct tags after normalization, both matched.
	assert.Equal(t, 1.0, scores[0].Score)
	assert.Equal(t, []string{"dividend", "value"}, scores[0].Matched)
}

func TestMatchStrategiesEmptyTags(t *testing.T) {
	strategies := []models.MStrategy{
		{Name: "Untagged"},
		{Name: "Tagged", Tags: []string{"value"}},
	}

	scores := MatchStrategies(strategies, surveyFixture())
	require.Len(t, scores, 2)
	assert.Equal(t, "Tagged", scores[0].Strategy.Name)
	assert.Equal(t, 0.0, scores[1].Score)
	assert.Empty(t, scores[1].Matched)
}

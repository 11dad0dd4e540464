package analysis

import (
	"sort"
	"strings"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// Strategy survey matching. The onboarding survey has five questions; each
// answer maps to a set of tags. A strategy's score is the set-intersection
// ratio between its own tags and the union of the answer tags:
//
//	score = |strategy tags ∩ survey tags| / |strategy tags|
//
// Results are sorted by score descending, ties broken by strategy name.
// -----------------------------------------------------------------------------

// SurveyTags flattens the per-question answer tags into one normalized set.
func SurveyTags(answers [][]string) map[string]bool {
	set := make(map[string]bool)
	for _, answer := range answers {
		for _, tag := range answer {
			if normalized := normalizeTag(tag); normalized != "" {
				set[normalized] = true
			}
		}
	}
	return set
}

// -----------------------------------------------------------------------------

// MatchStrategies scores every strategy against the survey answers.
// Strategies without tags score 0.
func MatchStrategies(strategies []models.MStrategy, answers [][]string) []models.MStrategyScore {
	surveyTags := SurveyTags(answers)

	scores := make([]models.MStrategyScore, 0, len(strategies))
	for _, strategy := range strategies {
		scores = append(scores, scoreStrategy(strategy, surveyTags))
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Strategy.Name < scores[j].Strategy.Name
	})

	return scores
}

// -----------------------------------------------------------------------------

func scoreStrategy(strategy models.MStrategy, surveyTags map[string]bool) models.MStrategyScore {
	// Deduplicate the strategy's own tags before the ratio so repeated tags
	// don't inflate the denominator.
	own := make(map[string]bool, len(strategy.Tags))
	for _, tag := range strategy.Tags {
		if normalized := normalizeTag(tag); normalized != "" {
			own[normalized] = true
		}
	}

	score := models.MStrategyScore{Strategy: strategy}
	if len(own) == 0 {
		return score
	}

	for tag := range own {
		if surveyTags[tag] {
			score.Matched = append(score.Matched, tag)
		}
	}
	sort.Strings(score.Matched)
	score.Score = float64(len(score.Matched)) / float64(len(own))
	return score
}

// -----------------------------------------------------------------------------

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

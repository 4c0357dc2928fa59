package rule

import (
	"math/rand/v2"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
)

// FallbackIndex is designated correct when no reference matches under the active rule.
const FallbackIndex = foil.ReferenceCount - 1

// #region engine
// Engine is the adaptive controller holding the active sort rule.
// It is not safe for concurrent use: all scoring must happen on one goroutine.
type Engine struct {
	config Config
	rng    *rand.Rand
	state  RuleState
}

// NewEngine creates an engine whose initial rule is drawn uniformly from card.Rules.
func NewEngine(config Config, rng *rand.Rand) *Engine {
	return &Engine{
		config: config,
		rng:    rng,
		state:  RuleState{ActiveRule: card.Rules[rng.IntN(len(card.Rules))]},
	}
}

// NewEngineWithRule creates an engine starting on a fixed rule.
func NewEngineWithRule(config Config, rng *rand.Rand, initial card.Rule) *Engine {
	return &Engine{
		config: config,
		rng:    rng,
		state:  RuleState{ActiveRule: initial},
	}
}

// ActiveRule is the only state the presentation side may observe.
func (e *Engine) ActiveRule() card.Rule {
	return e.state.ActiveRule
}

// State returns a copy of the current rule state.
func (e *Engine) State() RuleState {
	return e.state
}

// #endregion engine

// #region correct-reference
// CorrectReference returns the index of the first reference sharing the rule's
// attribute with target, or FallbackIndex when none does.
func CorrectReference(target card.Card, refs [foil.ReferenceCount]card.Card, r card.Rule) int {
	for i, ref := range refs {
		if ref.MatchesOn(target, r) {
			return i
		}
	}
	return FallbackIndex
}

// #endregion correct-reference

// #region score
// Score evaluates a choice against the active rule and advances the state.
// A nil choice is a non-response and counts as incorrect.
func (e *Engine) Score(target card.Card, refs [foil.ReferenceCount]card.Card, choice *int) Outcome {
	out := Outcome{
		CorrectIndex: CorrectReference(target, refs, e.state.ActiveRule),
		Responded:    choice != nil,
		RuleBefore:   e.state.ActiveRule,
		StreakBefore: e.state.ConsecutiveCorrect,
	}
	out.Correct = choice != nil && *choice == out.CorrectIndex

	if out.Correct {
		e.state.ConsecutiveCorrect++
	} else {
		e.state.ConsecutiveCorrect = 0
	}

	if e.state.ConsecutiveCorrect >= e.config.Threshold {
		e.state.ActiveRule = e.nextRule()
		e.state.ConsecutiveCorrect = 0
		e.state.TotalRuleChanges++
		out.RuleChanged = true
	}

	out.RuleAfter = e.state.ActiveRule
	out.StreakAfter = e.state.ConsecutiveCorrect
	return out
}

// nextRule draws uniformly among the rules other than the active one.
func (e *Engine) nextRule() card.Rule {
	others := make([]card.Rule, 0, len(card.Rules)-1)
	for _, r := range card.Rules {
		if r != e.state.ActiveRule {
			others = append(others, r)
		}
	}
	return others[e.rng.IntN(len(others))]
}

// #endregion score

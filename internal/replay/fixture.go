package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Seed            uint64                  `json:"seed"`
	Config          FixtureConfig           `json:"config"`
	Script          []FixtureStep           `json:"script"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors the session parameters with JSON tags.
type FixtureConfig struct {
	Trials    int `json:"trials"`
	Threshold int `json:"threshold"`
}

// FixtureStep mirrors Step with JSON tags.
type FixtureStep struct {
	Action string `json:"action"`
	Choice *int   `json:"choice,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per trial. Unset
// fields are not checked.
type FixtureExpectedResult struct {
	Trial       int    `json:"trial"`
	Correct     *bool  `json:"correct,omitempty"`
	RuleChanged *bool  `json:"rule_changed,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToReplayConfig converts the fixture header to a ReplayConfig.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	return ReplayConfig{
		Seed:      f.Seed,
		Trials:    f.Config.Trials,
		Threshold: f.Config.Threshold,
	}
}

// ToSteps converts the fixture script to domain steps.
func (f *Fixture) ToSteps() ([]Step, error) {
	steps := make([]Step, len(f.Script))
	for i, fs := range f.Script {
		s := Step{Action: Action(fs.Action)}
		switch s.Action {
		case ActionCorrect, ActionWrong, ActionTimeout:
		case ActionChoice:
			if fs.Choice == nil {
				return nil, fmt.Errorf("step %d: choice action without a choice", i+1)
			}
			s.Choice = *fs.Choice
		default:
			return nil, fmt.Errorf("step %d: unknown action %q", i+1, fs.Action)
		}
		steps[i] = s
	}
	return steps, nil
}

// #endregion fixture-loader

// #region fixture-export

// FromTrials builds a fixture that reproduces recorded trials: every answer
// becomes an explicit choice and every trial an expectation.
func FromTrials(description string, seed uint64, threshold int, trials []session.Trial) Fixture {
	f := Fixture{
		Description: description,
		Seed:        seed,
		Config:      FixtureConfig{Trials: len(trials), Threshold: threshold},
	}
	for _, t := range trials {
		step := FixtureStep{Action: string(ActionTimeout)}
		if t.Choice != nil {
			c := *t.Choice
			step = FixtureStep{Action: string(ActionChoice), Choice: &c}
		}
		correct, changed := t.Correct, t.RuleChanged
		f.Script = append(f.Script, step)
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			Trial:       t.Index,
			Correct:     &correct,
			RuleChanged: &changed,
			Outcome:     string(t.Outcome()),
		})
	}
	return f
}

// #endregion fixture-export

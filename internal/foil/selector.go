package foil

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/ptapal/experimental-psychology/internal/card"
)

// #region constants
const (
	// ReferenceCount is the number of reference cards shown per trial.
	ReferenceCount = 4

	// minOverlapping is the fewest references that must share an attribute with the target.
	minOverlapping = 2
)

// #endregion constants

// #region match-sets
// MatchSets holds, per rule, the ids sharing that attribute with a target.
// The sets overlap: an id can share both color and count with the target.
type MatchSets struct {
	Color []int
	Shape []int
	Count []int
}

// inPriority returns the sets in repair priority order: color, shape, count.
func (m MatchSets) inPriority() [3][]int {
	return [3][]int{m.Color, m.Shape, m.Count}
}

// BuildMatchSets partitions every catalog id except the target by shared attribute.
func BuildMatchSets(target card.Card) (MatchSets, error) {
	var m MatchSets
	for _, id := range card.IDs() {
		if id == target.ID {
			continue
		}
		c, err := card.AttributesOf(id)
		if err != nil {
			return MatchSets{}, err
		}
		if c.Color == target.Color {
			m.Color = append(m.Color, id)
		}
		if c.Shape == target.Shape {
			m.Shape = append(m.Shape, id)
		}
		if c.Count == target.Count {
			m.Count = append(m.Count, id)
		}
	}
	return m, nil
}

// #endregion match-sets

// #region selector
// Selector draws reference cards for a target card.
// It is not safe for concurrent use; the RNG is owned by the caller's trial loop.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a selector backed by rng.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// #endregion selector

// #region select-references
// SelectReferences returns four distinct reference ids, none equal to target.ID.
// One pick is drawn from each of the color, shape and count match sets, the rest
// filled from the unused pool, then a repair pass guarantees at least two
// references overlap the target when the match sets allow it.
func (s *Selector) SelectReferences(target card.Card) ([ReferenceCount]int, error) {
	var out [ReferenceCount]int

	sets, err := BuildMatchSets(target)
	if err != nil {
		return out, fmt.Errorf("build match sets: %w", err)
	}

	selected := make([]int, 0, ReferenceCount)
	for _, set := range sets.inPriority() {
		if len(set) == 0 {
			continue
		}
		pick := set[s.rng.IntN(len(set))]
		// A collided pick leaves its slot for the fill step.
		if !slices.Contains(selected, pick) {
			selected = append(selected, pick)
		}
	}

	for len(selected) < ReferenceCount {
		pool := unused(target.ID, selected)
		if len(pool) == 0 {
			break
		}
		selected = append(selected, pool[s.rng.IntN(len(pool))])
	}

	selected, err = s.repair(target, selected, sets)
	if err != nil {
		return out, err
	}

	if len(selected) < ReferenceCount {
		return out, fmt.Errorf("only %d references available for card %d", len(selected), target.ID)
	}
	copy(out[:], selected[:ReferenceCount])
	return out, nil
}

// #endregion select-references

// #region repair
// repair replaces references that share nothing with the target when fewer than
// minOverlapping references overlap it. Replacements come from the first of the
// color, shape and count sets that still has an unused candidate.
func (s *Selector) repair(target card.Card, selected []int, sets MatchSets) ([]int, error) {
	overlapping, err := countOverlapping(target, selected)
	if err != nil {
		return nil, err
	}
	if overlapping >= minOverlapping {
		return selected, nil
	}

	for i, id := range selected {
		c, err := card.AttributesOf(id)
		if err != nil {
			return nil, err
		}
		if c.SharesAny(target) {
			continue
		}
		for _, set := range sets.inPriority() {
			candidates := without(set, selected)
			if len(candidates) == 0 {
				continue
			}
			selected[i] = candidates[s.rng.IntN(len(candidates))]
			break
		}
	}
	return selected, nil
}

// #endregion repair

// #region helpers
func countOverlapping(target card.Card, ids []int) (int, error) {
	n := 0
	for _, id := range ids {
		c, err := card.AttributesOf(id)
		if err != nil {
			return 0, err
		}
		if c.SharesAny(target) {
			n++
		}
	}
	return n, nil
}

// unused returns catalog ids that are neither the target nor already selected.
func unused(targetID int, selected []int) []int {
	pool := make([]int, 0, card.DeckSize)
	for _, id := range card.IDs() {
		if id == targetID || slices.Contains(selected, id) {
			continue
		}
		pool = append(pool, id)
	}
	return pool
}

func without(set, exclude []int) []int {
	out := make([]int, 0, len(set))
	for _, id := range set {
		if !slices.Contains(exclude, id) {
			out = append(out, id)
		}
	}
	return out
}

// #endregion helpers

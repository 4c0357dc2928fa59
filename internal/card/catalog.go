package card

import (
	"errors"
	"fmt"
)

// #region constants
const (
	MinID     = 1
	MaxID     = 64
	DeckSize  = MaxID - MinID + 1
	groupSize = 16
)

// ErrInvalidCardID is returned for identifiers outside [MinID, MaxID].
var ErrInvalidCardID = errors.New("invalid card id")

// #endregion constants

// #region attributes-of
// AttributesOf maps a card identifier to its attributes by fixed partitioning
// of the id space: count cycles every card, color every 4, shape every 16.
func AttributesOf(id int) (Card, error) {
	if id < MinID || id > MaxID {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidCardID, id)
	}
	n := id - 1
	return Card{
		ID:    id,
		Count: n%4 + 1,
		Shape: shapes[n/groupSize],
		Color: colors[(n%groupSize)/4],
	}, nil
}

// MustAttributesOf is AttributesOf for ids already known to be valid.
func MustAttributesOf(id int) Card {
	c, err := AttributesOf(id)
	if err != nil {
		panic(err)
	}
	return c
}

// #endregion attributes-of

// #region ids
// IDs returns every card identifier in ascending order.
func IDs() []int {
	ids := make([]int, 0, DeckSize)
	for id := MinID; id <= MaxID; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Lookup resolves a slice of identifiers to cards, failing on the first invalid id.
func Lookup(ids []int) ([]Card, error) {
	cards := make([]Card, len(ids))
	for i, id := range ids {
		c, err := AttributesOf(id)
		if err != nil {
			return nil, err
		}
		cards[i] = c
	}
	return cards, nil
}

// #endregion ids

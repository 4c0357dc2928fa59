package card

import "fmt"

// #region shape
// Shape is the drawn symbol on a card.
type Shape string

const (
	ShapeTriangle Shape = "triangle"
	ShapeCircle   Shape = "circle"
	ShapeStar     Shape = "star"
	ShapeCross    Shape = "cross"
)

// shapes is indexed by shape-group ((id-1) div 16).
var shapes = [4]Shape{ShapeTriangle, ShapeCircle, ShapeStar, ShapeCross}

// #endregion shape

// #region color
// Color is the ink color of the symbols on a card.
type Color string

const (
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
)

// colors is indexed by color-group (((id-1) mod 16) div 4).
var colors = [4]Color{ColorGreen, ColorRed, ColorBlue, ColorYellow}

// #endregion color

// #region rule
// Rule names the attribute a reference card must share with the target.
type Rule string

const (
	RuleColor Rule = "color"
	RuleShape Rule = "shape"
	RuleCount Rule = "count"
)

// Rules lists every sort rule in canonical order.
var Rules = [3]Rule{RuleColor, RuleShape, RuleCount}

// ParseRule converts a stored or user-supplied name to a Rule.
// "number" is accepted as an alias of count.
func ParseRule(s string) (Rule, error) {
	switch s {
	case "color":
		return RuleColor, nil
	case "shape":
		return RuleShape, nil
	case "count", "number":
		return RuleCount, nil
	}
	return "", fmt.Errorf("unknown rule %q", s)
}

// #endregion rule

// #region card
// Card is the immutable attribute triple of one deck card.
type Card struct {
	ID    int   `json:"id"`
	Shape Shape `json:"shape"`
	Color Color `json:"color"`
	Count int   `json:"count"`
}

// Attribute returns the card's value for rule as a comparable string.
func (c Card) Attribute(r Rule) string {
	switch r {
	case RuleColor:
		return string(c.Color)
	case RuleShape:
		return string(c.Shape)
	case RuleCount:
		return fmt.Sprintf("%d", c.Count)
	}
	return ""
}

// MatchesOn reports whether c and other share the attribute named by r.
func (c Card) MatchesOn(other Card, r Rule) bool {
	switch r {
	case RuleColor:
		return c.Color == other.Color
	case RuleShape:
		return c.Shape == other.Shape
	case RuleCount:
		return c.Count == other.Count
	}
	return false
}

// SharesAny reports whether c and other share at least one attribute.
func (c Card) SharesAny(other Card) bool {
	return c.Color == other.Color || c.Shape == other.Shape || c.Count == other.Count
}

func (c Card) String() string {
	return fmt.Sprintf("#%d(%d %s %s)", c.ID, c.Count, c.Color, c.Shape)
}

// #endregion card

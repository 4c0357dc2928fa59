package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region palette
var symbols = map[card.Shape]string{
	card.ShapeTriangle: "▲",
	card.ShapeCircle:   "●",
	card.ShapeStar:     "★",
	card.ShapeCross:    "✚",
}

var inks = map[card.Color]lipgloss.Color{
	card.ColorGreen:  lipgloss.Color("2"),
	card.ColorRed:    lipgloss.Color("1"),
	card.ColorBlue:   lipgloss.Color("4"),
	card.ColorYellow: lipgloss.Color("3"),
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 1).
			Width(12).
			Align(lipgloss.Center)
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16).Align(lipgloss.Center)
	hintStyle  = lipgloss.NewStyle().Faint(true)

	feedbackStyles = map[session.Feedback]lipgloss.Style{
		session.FeedbackCorrect:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		session.FeedbackIncorrect:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		session.FeedbackNoResponse: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
	feedbackText = map[session.Feedback]string{
		session.FeedbackCorrect:    "Correct",
		session.FeedbackIncorrect:  "Incorrect",
		session.FeedbackNoResponse: "No response",
	}
)

// #endregion palette

// #region render
func renderCard(c card.Card) string {
	body := strings.Repeat(symbols[c.Shape], c.Count)
	return cardStyle.
		BorderForeground(inks[c.Color]).
		Foreground(inks[c.Color]).
		Render(body)
}

// renderTrial lays out the numbered reference row above the target.
func renderTrial(target card.Card, refs [foil.ReferenceCount]card.Card) string {
	cols := make([]string, len(refs))
	for i, r := range refs {
		cols[i] = lipgloss.JoinVertical(lipgloss.Center, labelStyle.Render(fmt.Sprintf("%d", i+1)), renderCard(r))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	return lipgloss.JoinVertical(lipgloss.Left,
		row,
		"",
		labelStyle.Render("target"),
		renderCard(target),
		hintStyle.Render("press 1-4 to sort, q to quit"),
	)
}

func renderFeedback(fb session.Feedback) string {
	text, ok := feedbackText[fb]
	if !ok {
		text = string(fb)
	}
	return feedbackStyles[fb].Render(text)
}

// #endregion render

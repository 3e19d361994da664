package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/spell"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Bold(true).
			PaddingLeft(1)

	correctedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD75F")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AFD7FF"))

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F5F")).
			Padding(1, 2).
			Width(60)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

func (m model) renderLog() string {
	width := m.viewport.Width
	var b strings.Builder
	for i, msg := range m.session.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg, width))
	}
	if m.pending != "" {
		b.WriteString("\n\n" + pendingStyle.Width(width).Render("> "+m.pending))
	}
	return b.String()
}

// renderMessage draws one log entry. Corrected words in a player message are
// shown in red, followed by the remaining mistake allowance.
func renderMessage(msg models.Message, width int) string {
	if msg.Role != models.RoleUser {
		return gameStyle.Width(width).Render(msg.Text)
	}

	var b strings.Builder
	b.WriteString("> ")
	if len(msg.Markup) == 0 {
		b.WriteString(msg.Text)
	}
	for _, span := range msg.Markup {
		if span.Corrected {
			b.WriteString(correctedStyle.Render(span.Text))
			continue
		}
		b.WriteString(span.Text)
	}
	out := userStyle.Width(width).Render(b.String())

	if msg.Remaining != nil {
		allowance := fmt.Sprintf("Mistakes left: %d/%d", *msg.Remaining, spell.MistakeAllowance)
		style := helpStyle
		if *msg.Remaining < spell.MistakeAllowance {
			style = correctedStyle
		}
		out += "\n" + style.PaddingLeft(1).Render(allowance)
	}
	return out
}

func (m model) renderState() string {
	health := m.session.Health()
	gold := m.session.Gold()

	healthView := titleStyle.Render("HEALTH") + "\n" +
		m.healthBar.ViewAs(health.Fraction()) + "\n" +
		fmt.Sprintf("%d/%d HP", health.Current, health.Total) + "\n\n"

	goldView := titleStyle.Render("GOLD") + "\n" + fmt.Sprintf("%d coins", gold.Coins) + "\n\n"

	modeView := titleStyle.Render("MODE") + "\n" + string(m.session.Mode()) + "\n\n"

	invTitle := titleStyle.Render("INVENTORY") + "\n"
	inventory := ""
	names := models.NamesOf(m.inventory)
	if len(names) == 0 {
		inventory = "(empty)"
	} else {
		for _, name := range names {
			inventory += "- " + name + "\n"
		}
	}

	content := healthView + goldView + modeView + invTitle + inventory

	stateWidth := int(float64(m.width) * 0.23)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a message in the story log.
type Role string

const (
	RoleUser  Role = "user"
	RoleStory Role = "story"
)

// Span is a run of text in a user message; Corrected marks text the spell
// checker replaced.
type Span struct {
	Text      string `yaml:"text"`
	Corrected bool   `yaml:"corrected,omitempty"`
}

// Markup describes which spans of a message changed during correction.
type Markup []Span

// String returns the plain text of the markup.
func (m Markup) String() string {
	var b strings.Builder
	for _, s := range m {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Message is a single entry in the story log.
type Message struct {
	Role      Role   `yaml:"role"`
	Text      string `yaml:"text"`
	Markup    Markup `yaml:"markup,omitempty"`
	Remaining *int   `yaml:"remaining,omitempty"` // spelling allowance left after this message
}

// Item is an inventory entry owned by the item store.
type Item struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Valid reports whether the item has a usable display name.
func (i Item) Valid() bool {
	return strings.TrimSpace(i.Name) != ""
}

// NamesOf returns the trimmed, non-empty names of items in order.
func NamesOf(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Valid() {
			names = append(names, strings.TrimSpace(it.Name))
		}
	}
	return names
}

// GameplayMode selects the transform applied to every player action.
type GameplayMode string

const (
	SpellingCheck GameplayMode = "Spelling Check"
	DiceRoll      GameplayMode = "Dice Roll"
)

// AllModes lists the selectable gameplay modes.
func AllModes() []GameplayMode {
	return []GameplayMode{SpellingCheck, DiceRoll}
}

// ParseGameplayMode accepts a display name or a short alias.
func ParseGameplayMode(s string) (GameplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spell", "spelling", "spellcheck", "spelling check":
		return SpellingCheck, nil
	case "dice", "roll", "diceroll", "dice roll":
		return DiceRoll, nil
	}
	return "", fmt.Errorf("unknown gameplay mode %q", s)
}

// ContinuationResult is the outcome of one generation request.
type ContinuationResult struct {
	Text  string
	Items []string
	Gold  int
}

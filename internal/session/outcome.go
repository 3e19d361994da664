package session

import (
	"fmt"
	"strings"
	"unicode"
)

// penaltyFor maps the remaining spelling allowance to health damage.
func penaltyFor(remaining int) int {
	switch remaining {
	case 2:
		return 10
	case 1:
		return 30
	}
	return 50
}

func mishap(remaining, damage int) string {
	switch remaining {
	case 2:
		return fmt.Sprintf("Your muddled words cause a minor mishap. You stumble and scrape your knee. (-%d HP)", damage)
	case 1:
		return fmt.Sprintf("Your garbled command backfires. A trap snaps at your legs, leaving you limping. (-%d HP)", damage)
	}
	return fmt.Sprintf("The world misreads your intent entirely. A hidden force strikes hard, knocking the wind from you. (-%d HP)", damage)
}

// sanitize drops lines that look like option lists or leftover tags. If
// nothing survives the original text is kept.
func sanitize(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "-"):
		case numbered(trimmed):
		case strings.HasPrefix(trimmed, "[") && strings.Contains(trimmed, "]"):
		default:
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(kept, "\n")
}

// numbered reports whether line starts like "1." or "12.".
func numbered(line string) bool {
	digits := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) })
	return digits > 0 && line[digits] == '.'
}

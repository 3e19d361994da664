// Package spell corrects misspelled words in player actions and counts the
// mistakes against a per-turn allowance.
package spell

import (
	"strings"

	"github.com/tatianab/grammrpg/internal/models"
	"golang.org/x/text/cases"
)

// MistakeAllowance is the number of corrected words tolerated per action.
const MistakeAllowance = 5

// Range is a byte range within a text.
type Range struct {
	Start int
	Len   int
}

// End returns the offset just past the range.
func (r Range) End() int { return r.Start + r.Len }

// Checker finds misspellings and proposes replacements.
type Checker interface {
	// MisspelledRange returns the first misspelled token starting at or
	// after cursor.
	MisspelledRange(text string, cursor int) (Range, bool)
	// Suggestions returns candidate replacements for the token at r, best
	// first.
	Suggestions(text string, r Range) []string
}

// Result is the outcome of analyzing one action.
type Result struct {
	Markup    models.Markup
	Remaining int
	Corrected string
	Mistakes  int
}

// Analyzer applies a Checker to free text, protecting inventory names and
// quoted or bracketed input.
type Analyzer struct {
	checker Checker
}

// NewAnalyzer returns an Analyzer backed by checker.
func NewAnalyzer(checker Checker) *Analyzer {
	return &Analyzer{checker: checker}
}

// Analyze corrects text and reports how much of the allowance is left.
// Later misspellings are searched in the already corrected text.
func (a *Analyzer) Analyze(text string, protectedTerms []string) Result {
	if a == nil || a.checker == nil {
		return Result{Markup: plain(text), Remaining: MistakeAllowance, Corrected: text}
	}

	fold := cases.Fold()
	terms := make(map[string]bool, len(protectedTerms))
	folded := make(map[string]bool, len(protectedTerms))
	for _, t := range protectedTerms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		terms[t] = true
		folded[fold.String(t)] = true
	}

	working := text
	cursor := 0
	mistakes := 0
	var markup models.Markup

	for {
		miss, ok := a.checker.MisspelledRange(working, cursor)
		if !ok || miss.Start < cursor || miss.Len <= 0 || miss.End() > len(working) {
			markup = appendSpan(markup, working[cursor:], false)
			break
		}

		markup = appendSpan(markup, working[cursor:miss.Start], false)

		token := working[miss.Start:miss.End()]
		replacement := token
		switch {
		case terms[token] || folded[fold.String(token)]:
		case insideDelimiters(working, miss):
		default:
			if s, ok := pickSuggestion(a.checker.Suggestions(working, miss), folded, fold); ok {
				replacement = s
			}
		}

		changed := replacement != token
		if changed {
			mistakes++
		}
		markup = appendSpan(markup, replacement, changed)

		working = working[:miss.Start] + replacement + working[miss.End():]
		cursor = miss.Start + len(replacement)
	}

	return Result{
		Markup:    markup,
		Remaining: max(0, MistakeAllowance-mistakes),
		Corrected: working,
		Mistakes:  mistakes,
	}
}

// pickSuggestion prefers a candidate naming a protected term over the top
// suggestion.
func pickSuggestion(candidates []string, folded map[string]bool, fold cases.Caser) (string, bool) {
	var first string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if folded[fold.String(c)] {
			return c, true
		}
		if first == "" {
			first = c
		}
	}
	return first, first != ""
}

// insideDelimiters reports whether r sits inside "..." or [...] by counting
// delimiters on either side. Nesting and escapes are not understood.
func insideDelimiters(text string, r Range) bool {
	before, after := text[:r.Start], text[r.End():]
	if strings.Count(before, `"`)%2 == 1 && strings.Count(after, `"`)%2 == 1 {
		return true
	}
	return strings.Count(before, "[")%2 == 1 && strings.Count(after, "]")%2 == 1
}

func appendSpan(m models.Markup, text string, corrected bool) models.Markup {
	if text == "" {
		return m
	}
	if !corrected && len(m) > 0 && !m[len(m)-1].Corrected {
		m[len(m)-1].Text += text
		return m
	}
	return append(m, models.Span{Text: text, Corrected: corrected})
}

func plain(text string) models.Markup {
	return appendSpan(nil, text, false)
}

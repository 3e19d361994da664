// Package rewards extracts item and gold award tags from generated story
// text.
//
// The grammar is fixed so any backend prompted against it stays compatible:
//
//	[ITEM: <name>]   name is any run of characters other than ']'
//	[GOLD: <digits>] a non-negative integer
package rewards

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	itemPattern = regexp.MustCompile(`\[ITEM:\s*([^\]]+)\]`)
	goldPattern = regexp.MustCompile(`\[GOLD:\s*([0-9]+)\]`)
)

type tag struct {
	start, end int
	item       string
	gold       int
	isItem     bool
}

// Parse strips award tags from text and returns the remaining text, the
// awarded item names in the order they appear, and the summed gold.
func Parse(text string) (clean string, items []string, gold int) {
	var tags []tag
	for _, m := range itemPattern.FindAllStringSubmatchIndex(text, -1) {
		tags = append(tags, tag{
			start:  m[0],
			end:    m[1],
			item:   strings.TrimSpace(text[m[2]:m[3]]),
			isItem: true,
		})
	}
	for _, m := range goldPattern.FindAllStringSubmatchIndex(text, -1) {
		amount, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			// out of range; the tag is still removed
			amount = 0
		}
		tags = append(tags, tag{start: m[0], end: m[1], gold: amount})
	}
	if len(tags) == 0 {
		return text, nil, 0
	}

	sort.SliceStable(tags, func(i, j int) bool { return tags[i].start < tags[j].start })

	// An item name may run over a later tag; the earlier tag wins.
	kept := tags[:0]
	end := 0
	for _, t := range tags {
		if t.start < end {
			continue
		}
		kept = append(kept, t)
		end = t.end
	}
	tags = kept

	for _, t := range tags {
		if t.isItem {
			if t.item != "" {
				items = append(items, t.item)
			}
			continue
		}
		gold = addCapped(gold, t.gold)
	}

	// Delete back to front so earlier offsets stay valid.
	remaining := text
	for i := len(tags) - 1; i >= 0; i-- {
		remaining = remaining[:tags[i].start] + remaining[tags[i].end:]
	}

	return tidy(remaining), items, gold
}

// addCapped adds two non-negative amounts, saturating at math.MaxInt.
func addCapped(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func tidy(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

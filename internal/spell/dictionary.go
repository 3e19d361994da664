package spell

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

//go:embed words.txt
var defaultWords string

const maxSuggestions = 5

// Dictionary is a word-list Checker. Earlier words in the list rank higher
// among suggestions.
type Dictionary struct {
	rank  map[string]int
	words []string
}

// NewDictionary builds a Dictionary from words in rank order.
func NewDictionary(words ...string) *Dictionary {
	d := &Dictionary{rank: make(map[string]int, len(words))}
	d.Add(words...)
	return d
}

// DefaultDictionary returns a Dictionary over the built-in word list.
func DefaultDictionary() *Dictionary {
	return NewDictionary(strings.Fields(defaultWords)...)
}

// ReadDictionary reads one word per line from r into a new Dictionary.
func ReadDictionary(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		d.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDictionary reads a word list file, e.g. /usr/share/dict/words, and
// merges it after the built-in list.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	extra, err := ReadDictionary(f)
	if err != nil {
		return nil, err
	}
	d := DefaultDictionary()
	d.Add(extra.words...)
	return d, nil
}

// Add appends words not already known.
func (d *Dictionary) Add(words ...string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := d.rank[w]; ok {
			continue
		}
		d.rank[w] = len(d.words)
		d.words = append(d.words, w)
	}
}

// Len returns the number of known words.
func (d *Dictionary) Len() int { return len(d.words) }

// Contains reports whether word is spelled correctly.
func (d *Dictionary) Contains(word string) bool {
	w := strings.ToLower(word)
	if _, ok := d.rank[w]; ok {
		return true
	}
	if base, ok := strings.CutSuffix(w, "'s"); ok {
		_, ok = d.rank[base]
		return ok
	}
	return false
}

// MisspelledRange implements Checker.
func (d *Dictionary) MisspelledRange(text string, cursor int) (Range, bool) {
	if cursor < 0 {
		cursor = 0
	}
	i := cursor
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		start := i
		i = tokenEnd(text, i)
		token := text[start:i]
		if d.misspelled(token) {
			return Range{Start: start, Len: i - start}, true
		}
	}
	return Range{}, false
}

// Suggestions implements Checker. Candidates are ordered by edit distance,
// transpositions first among equals, then by word-list rank, and re-cased to
// match the token.
func (d *Dictionary) Suggestions(text string, r Range) []string {
	if r.Start < 0 || r.End() > len(text) || r.Len <= 0 {
		return nil
	}
	token := text[r.Start:r.End()]
	lower := strings.ToLower(token)
	n := utf8.RuneCountInString(lower)
	limit := levenshteinLimit(n)

	type scored struct {
		word    string
		dist    int
		anagram bool
		rank    int
	}
	var results []scored
	for i, w := range d.words {
		diff := utf8.RuneCountInString(w) - n
		if diff > limit || -diff > limit {
			continue
		}
		dist := levenshtein.ComputeDistance(lower, w)
		anagram := sameLetters(lower, w)
		if anagram && dist == 2 {
			// a single transposition such as "opne" for "open"
			dist = 1
		}
		if dist == 0 || dist > limit {
			continue
		}
		results = append(results, scored{word: w, dist: dist, anagram: anagram, rank: i})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.anagram != b.anagram {
			return a.anagram
		}
		return a.rank < b.rank
	})

	out := make([]string, 0, min(len(results), maxSuggestions))
	for _, s := range results {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, matchCase(token, s.word))
	}
	return out
}

func (d *Dictionary) misspelled(token string) bool {
	if strings.IndexFunc(token, unicode.IsDigit) >= 0 {
		return false
	}
	// acronyms such as HP or NPC
	if utf8.RuneCountInString(token) > 1 && strings.ToUpper(token) == token {
		return false
	}
	return !d.Contains(token)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokenEnd scans a word starting at i. Apostrophes count only between
// letters, so "don't" is one token and a closing quote is not.
func tokenEnd(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isWordRune(r) {
			i += size
			continue
		}
		if r == '\'' && i+size < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if unicode.IsLetter(next) {
				i += size
				continue
			}
		}
		break
	}
	return i
}

func sameLetters(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	ra, rb := []rune(a), []rune(b)
	sort.Slice(ra, func(i, j int) bool { return ra[i] < ra[j] })
	sort.Slice(rb, func(i, j int) bool { return rb[i] < rb[j] })
	return string(ra) == string(rb)
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

func matchCase(token, word string) string {
	first, _ := utf8.DecodeRuneInString(token)
	switch {
	case utf8.RuneCountInString(token) > 1 && strings.ToUpper(token) == token:
		return strings.ToUpper(word)
	case unicode.IsUpper(first):
		r, size := utf8.DecodeRuneInString(word)
		return string(unicode.ToUpper(r)) + word[size:]
	}
	return word
}

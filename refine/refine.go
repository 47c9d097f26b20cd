// Package refine normalizes raw transcripts: technical jargon casing,
// spacing around punctuation, sentence capitalization, a terminal period
// and apostrophe-less contractions.
package refine

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	reSpaces        = regexp.MustCompile(`\s+`)
	reSpaceBefore   = regexp.MustCompile(`\s+([.,!?;:])`)
	reNoSpaceAfter  = regexp.MustCompile(`([.,!?;:])([A-Za-z])`)
	reSentenceStart = regexp.MustCompile(`([.!?])\s+([a-z])`)
)

type rule struct {
	term   string
	proper string
	re     *regexp.Regexp
}

// matcher rewrites every jargon term in one left-to-right scan. Replaced
// text is never scanned again, so a short key cannot match inside the
// canonical form of a longer one.
type matcher struct {
	re    *regexp.Regexp
	table map[string]string
}

// Refiner applies the refinement passes. The jargon table is owned by the
// instance; AddMapping never affects other Refiners.
type Refiner struct {
	mu           sync.RWMutex
	jargon       map[string]string
	terms        *matcher
	protected    []*regexp.Regexp
	contractions bool
}

type Option func(*Refiner)

// WithJargon layers extra mappings over the built-in table.
func WithJargon(m map[string]string) Option {
	return func(r *Refiner) {
		for k, v := range m {
			r.jargon[strings.ToLower(k)] = v
		}
	}
}

// WithTable replaces the built-in table entirely.
func WithTable(m map[string]string) Option {
	return func(r *Refiner) {
		r.jargon = make(map[string]string, len(m))
		for k, v := range m {
			r.jargon[strings.ToLower(k)] = v
		}
	}
}

func WithContractions(enabled bool) Option {
	return func(r *Refiner) { r.contractions = enabled }
}

func New(opts ...Option) *Refiner {
	r := &Refiner{jargon: DefaultJargon(), contractions: true}
	for _, o := range opts {
		o(r)
	}
	r.compile()
	return r
}

// AddMapping adds or replaces one jargon entry. The key is lowercased.
func (r *Refiner) AddMapping(term, proper string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jargon[term] = proper
	r.compile()
}

// Mappings returns a copy of the instance's jargon table.
func (r *Refiner) Mappings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.jargon))
	for k, v := range r.jargon {
		out[k] = v
	}
	return out
}

func (r *Refiner) Contractions() bool { return r.contractions }

// Refine runs every pass in order. Blank input yields "".
func (r *Refiner) Refine(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	r.mu.RLock()
	terms, protected := r.terms, r.protected
	r.mu.RUnlock()

	text = terms.apply(text)
	text = fixSpacing(text, protected)
	text = capitalize(text)
	text = terminate(text)
	if r.contractions {
		text = fixContractions(text)
	}
	return text
}

// compile builds a single alternation of whole-word term patterns, longest
// term first, so at any position the longest key wins. Callers hold mu (or
// own r exclusively).
func (r *Refiner) compile() {
	terms := make([]string, 0, len(r.jargon))
	for k := range r.jargon {
		terms = append(terms, k)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	m := &matcher{table: make(map[string]string, len(terms))}
	alts := make([]string, 0, len(terms))
	seen := map[string]bool{}
	var protected []*regexp.Regexp
	for _, t := range terms {
		proper := r.jargon[t]
		m.table[t] = proper
		alts = append(alts, wordExpr(t))
		if strings.ContainsAny(proper, ".,!?;:") && !seen[proper] {
			seen[proper] = true
			protected = append(protected, wordPattern(proper, false))
		}
	}
	if len(alts) > 0 {
		m.re = regexp.MustCompile("(?i)(?:" + strings.Join(alts, "|") + ")")
	}
	r.terms = m
	r.protected = protected
}

func (m *matcher) apply(text string) string {
	if m.re == nil {
		return text
	}
	return m.re.ReplaceAllStringFunc(text, func(s string) string {
		if proper, ok := m.table[strings.ToLower(s)]; ok {
			return proper
		}
		return s
	})
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// wordPattern matches s only where it is not glued to surrounding word
// characters. Boundaries are only asserted on sides where s itself starts
// or ends with a word character.
func wordPattern(s string, fold bool) *regexp.Regexp {
	expr := wordExpr(s)
	if fold {
		expr = "(?i)" + expr
	}
	return regexp.MustCompile(expr)
}

func wordExpr(s string) string {
	var b strings.Builder
	if first, _ := utf8.DecodeRuneInString(s); isWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(s))
	if last, _ := utf8.DecodeLastRuneInString(s); isWordRune(last) {
		b.WriteString(`\b`)
	}
	return b.String()
}

func fixSpacing(text string, protected []*regexp.Regexp) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reSpaceBefore.ReplaceAllString(text, "$1")

	var keep [][]int
	for _, re := range protected {
		keep = append(keep, re.FindAllStringIndex(text, -1)...)
	}
	inProtected := func(i int) bool {
		for _, k := range keep {
			if i >= k[0] && i < k[1] {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	last := 0
	for _, m := range reNoSpaceAfter.FindAllStringSubmatchIndex(text, -1) {
		punctEnd := m[3]
		if inProtected(m[2]) {
			continue
		}
		b.WriteString(text[last:punctEnd])
		b.WriteByte(' ')
		last = punctEnd
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

func capitalize(text string) string {
	first, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(first)) + text[size:]
	return reSentenceStart.ReplaceAllStringFunc(text, func(m string) string {
		return m[:1] + " " + strings.ToUpper(m[len(m)-1:])
	})
}

func terminate(text string) string {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

var contractionRules = func() []rule {
	out := make([]rule, 0, len(contractions))
	for k, v := range contractions {
		out = append(out, rule{term: k, proper: v, re: wordPattern(k, true)})
	}
	return out
}()

func fixContractions(text string) string {
	for _, c := range contractionRules {
		proper := c.proper
		text = c.re.ReplaceAllStringFunc(text, func(m string) string {
			first, _ := utf8.DecodeRuneInString(m)
			if unicode.IsUpper(first) {
				p, size := utf8.DecodeRuneInString(proper)
				return string(unicode.ToUpper(p)) + proper[size:]
			}
			return proper
		})
	}
	return text
}

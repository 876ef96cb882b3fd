package response

import (
	"sort"
	"strings"

	"elearning-chatbot-be/pkg/rag/lexicon"
	"elearning-chatbot-be/pkg/rag/retriever"
)

const MaxSuggestions = 3

// Analyzer derives the heuristic signals of a turn from the lexicon:
// confidence, suggestions, topics and preference hints.
type Analyzer struct {
	lx *lexicon.Lexicon
}

func NewAnalyzer(lx *lexicon.Lexicon) *Analyzer {
	return &Analyzer{lx: lx}
}

func (a *Analyzer) Lexicon() *lexicon.Lexicon {
	return a.lx
}

// Confidence is base + min(cap, sum(per_snippet * score)) + domain bonus
// - penalty per uncertainty marker, clamped to [0,1].
func (a *Analyzer) Confidence(text string, snippets []retriever.Snippet) float64 {
	c := a.lx.Confidence
	lower := strings.ToLower(text)

	bonus := 0.0
	for _, s := range snippets {
		bonus += c.PerSnippet * s.Score
	}
	if bonus > c.ContextCap {
		bonus = c.ContextCap
	}

	score := c.Base + bonus
	if containsAny(lower, a.lx.DomainKeywords) {
		score += c.DomainBonus
	}
	score -= c.UncertaintyPenalty * float64(a.UncertaintyMarkers(text))
	return clamp(score)
}

// UncertaintyMarkers counts hedging phrases in text.
func (a *Analyzer) UncertaintyMarkers(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, m := range a.lx.UncertaintyMarkers {
		n += countPhrase(lower, m)
	}
	return n
}

// Suggestions emits one suggestion per recommendation phrase found in text,
// ordered by where the phrase first appears, at most MaxSuggestions.
func (a *Analyzer) Suggestions(text string) []string {
	lower := strings.ToLower(text)

	type hit struct {
		pos    int
		phrase string
	}
	var hits []hit
	for _, p := range a.lx.Suggestions.Phrases {
		if pos := indexPhrase(lower, p); pos >= 0 {
			hits = append(hits, hit{pos: pos, phrase: p})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, MaxSuggestions)
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		s := a.lx.FormatSuggestion(h.phrase)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// Topics returns the lexicon topics mentioned in message, in lexicon order.
func (a *Analyzer) Topics(message string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, t := range a.lx.Topics {
		if containsAny(lower, t.Keywords) {
			out = append(out, t.Name)
		}
	}
	return out
}

// Preferences returns the preference flags signalled by message.
func (a *Analyzer) Preferences(message string) map[string]interface{} {
	lower := strings.ToLower(message)
	out := map[string]interface{}{}
	for _, p := range a.lx.Preferences {
		if containsAny(lower, p.Keywords) {
			out[p.Key] = true
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

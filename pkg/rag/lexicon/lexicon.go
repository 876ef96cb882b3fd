// Package lexicon holds the language specific phrase lists used to build
// prompts and to score generated answers. A deployment swaps the YAML file,
// the code stays the same.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Labels struct {
	Profile      string        `yaml:"profile"`
	Context      string        `yaml:"context"`
	History      string        `yaml:"history"`
	User         string        `yaml:"user"`
	Assistant    string        `yaml:"assistant"`
	Question     string        `yaml:"question"`
	Instructions string        `yaml:"instructions"`
	Answer       string        `yaml:"answer"`
	Fields       ProfileFields `yaml:"fields"`
}

type ProfileFields struct {
	Name             string `yaml:"name"`
	Level            string `yaml:"level"`
	EnrolledCourses  string `yaml:"enrolled_courses"`
	CompletedCourses string `yaml:"completed_courses"`
	InProgress       string `yaml:"in_progress"`
	AverageProgress  string `yaml:"average_progress"`
}

type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Preference struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
}

type Suggestions struct {
	Template string   `yaml:"template"` // "{phrase}" is replaced by the matched phrase
	Phrases  []string `yaml:"phrases"`
}

type Confidence struct {
	Base               float64 `yaml:"base"`
	PerSnippet         float64 `yaml:"per_snippet"`
	ContextCap         float64 `yaml:"context_cap"`
	DomainBonus        float64 `yaml:"domain_bonus"`
	UncertaintyPenalty float64 `yaml:"uncertainty_penalty"`
}

type Messages struct {
	Apology            string `yaml:"apology"`
	RateLimited        string `yaml:"rate_limited"`
	ModelRateLimited   string `yaml:"model_rate_limited"`
	ModelUnavailable   string `yaml:"model_unavailable"`
	InvalidRequest     string `yaml:"invalid_request"`
	SessionUnavailable string `yaml:"session_unavailable"`
}

type Lexicon struct {
	Language           string       `yaml:"language"`
	Preamble           string       `yaml:"preamble"`
	Instructions       []string     `yaml:"instructions"`
	Labels             Labels       `yaml:"labels"`
	Topics             []Topic      `yaml:"topics"`
	Preferences        []Preference `yaml:"preferences"`
	Suggestions        Suggestions  `yaml:"suggestions"`
	UncertaintyMarkers []string     `yaml:"uncertainty_markers"`
	DomainKeywords     []string     `yaml:"domain_keywords"`
	Confidence         Confidence   `yaml:"confidence"`
	Messages           Messages     `yaml:"messages"`
}

// Default returns the built-in English lexicon.
func Default() *Lexicon {
	var lx Lexicon
	if err := yaml.Unmarshal(defaultYAML, &lx); err != nil {
		panic(fmt.Sprintf("lexicon: embedded default is invalid: %v", err))
	}
	lx.normalize()
	return &lx
}

// Load reads path over the default lexicon. Keys missing from the file keep
// their default value. An empty path returns the default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Lexicon, error) {
	lx := Default()
	if err := yaml.Unmarshal(data, lx); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	lx.normalize()
	if err := lx.Validate(); err != nil {
		return nil, err
	}
	return lx, nil
}

func (lx *Lexicon) Validate() error {
	var errs []error
	c := lx.Confidence
	for name, v := range map[string]float64{
		"base":                c.Base,
		"per_snippet":         c.PerSnippet,
		"context_cap":         c.ContextCap,
		"domain_bonus":        c.DomainBonus,
		"uncertainty_penalty": c.UncertaintyPenalty,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("confidence.%s must be within [0,1], got %v", name, v))
		}
	}
	if lx.Messages.Apology == "" {
		errs = append(errs, errors.New("messages.apology is required"))
	}
	return errors.Join(errs...)
}

// Matching is case insensitive, so every phrase is stored lower-cased.
func (lx *Lexicon) normalize() {
	for i := range lx.Topics {
		lx.Topics[i].Keywords = lowerAll(lx.Topics[i].Keywords)
	}
	for i := range lx.Preferences {
		lx.Preferences[i].Keywords = lowerAll(lx.Preferences[i].Keywords)
	}
	lx.Suggestions.Phrases = lowerAll(lx.Suggestions.Phrases)
	lx.UncertaintyMarkers = lowerAll(lx.UncertaintyMarkers)
	lx.DomainKeywords = lowerAll(lx.DomainKeywords)
	lx.Preamble = strings.TrimSpace(lx.Preamble)
}

// Instruction lines with the {language} placeholder resolved.
func (lx *Lexicon) ResolvedInstructions() []string {
	out := make([]string, len(lx.Instructions))
	for i, line := range lx.Instructions {
		out[i] = strings.ReplaceAll(line, "{language}", lx.Language)
	}
	return out
}

func (lx *Lexicon) FormatSuggestion(phrase string) string {
	tmpl := lx.Suggestions.Template
	if tmpl == "" {
		return phrase
	}
	return strings.ReplaceAll(tmpl, "{phrase}", phrase)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package prompt

import (
	"fmt"
	"strings"
	"testing"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/pkg/rag/lexicon"
	"elearning-chatbot-be/pkg/rag/retriever"

	"github.com/stretchr/testify/assert"
)

func turns(n int) []*entity.ChatTurn {
	out := make([]*entity.ChatTurn, n)
	for i := range out {
		out[i] = &entity.ChatTurn{UserMessage: fmt.Sprintf("question %d", i+1), BotResponse: fmt.Sprintf("answer %d", i+1)}
	}
	return out
}

func TestBuildSectionOrder(t *testing.T) {
	lx := lexicon.Default()
	b := NewBuilder(lx, 3, 0, RuneCounter{})

	res := b.Build(Input{
		Message:  "How do I get a certificate?",
		Profile:  &entity.Profile{Name: "Linh", EnrolledCourses: []string{"Go 101"}, CompletedCourses: 2},
		Snippets: []retriever.Snippet{{Content: "Certificates are issued after the final quiz.", Source: "FAQ"}},
		History:  turns(5),
	})
	p := res.Prompt

	order := []string{
		lx.Preamble,
		lx.Labels.Profile + ":",
		lx.Labels.Context + ":",
		lx.Labels.History + ":",
		lx.Labels.Question + ": How do I get a certificate?",
		lx.Labels.Instructions + ":",
		lx.Labels.Answer + ":",
	}
	last := -1
	for _, section := range order {
		idx := strings.Index(p, section)
		assert.Greater(t, idx, last, "section %q out of order", section)
		last = idx
	}

	assert.Contains(t, p, "[1] (FAQ) Certificates are issued after the final quiz.")
	assert.Contains(t, p, "Linh")
	assert.Contains(t, p, "Go 101")
	assert.NotContains(t, p, "question 2")
	assert.Contains(t, p, "question 3")
	assert.Contains(t, p, "answer 5")
	assert.Contains(t, p, "English")
	assert.Greater(t, res.Tokens, 0)
	assert.Len(t, res.Used, 1)
}

func TestBuildOmitsMissingSections(t *testing.T) {
	lx := lexicon.Default()
	b := NewBuilder(lx, 3, 0, nil)

	tests := []struct {
		name   string
		in     Input
		absent []string
	}{
		{"nothing but the message", Input{Message: "hello"}, []string{lx.Labels.Profile + ":", lx.Labels.Context + ":", lx.Labels.History + ":"}},
		{"empty profile", Input{Message: "hello", Profile: &entity.Profile{UserId: "u1"}}, []string{lx.Labels.Profile + ":"}},
		{"empty snippets", Input{Message: "hello", Snippets: []retriever.Snippet{}}, []string{lx.Labels.Context + ":"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := b.Build(tt.in).Prompt
			for _, s := range tt.absent {
				assert.NotContains(t, p, s)
			}
			assert.Contains(t, p, lx.Labels.Question+": hello")
		})
	}
}

func TestContextBudget(t *testing.T) {
	long := strings.Repeat("word ", 40) // 200 runes, 50 estimated tokens
	snippets := []retriever.Snippet{
		{ID: "a", Content: long, Source: "A"},
		{ID: "b", Content: long, Source: "B"},
		{ID: "c", Content: "short", Source: "C"},
	}

	res := NewBuilder(lexicon.Default(), 3, 60, RuneCounter{}).Build(Input{Message: "q", Snippets: snippets})
	assert.Len(t, res.Used, 1)
	assert.Equal(t, "a", res.Used[0].ID)
	assert.NotContains(t, res.Prompt, "(B)")

	res = NewBuilder(lexicon.Default(), 3, 10, RuneCounter{}).Build(Input{Message: "q", Snippets: snippets})
	assert.Len(t, res.Used, 1, "the first snippet is always kept")
}

func TestRuneCounter(t *testing.T) {
	assert.Equal(t, 0, RuneCounter{}.Count(""))
	assert.Equal(t, 1, RuneCounter{}.Count("abc"))
	assert.Equal(t, 2, RuneCounter{}.Count("khóa học"))
}

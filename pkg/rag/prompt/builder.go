package prompt

import (
	"fmt"
	"strings"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/pkg/rag/history"
	"elearning-chatbot-be/pkg/rag/lexicon"
	"elearning-chatbot-be/pkg/rag/retriever"
)

// Input is everything a prompt can be built from. Empty parts are left out
// of the prompt entirely.
type Input struct {
	Message  string
	Profile  *entity.Profile
	Snippets []retriever.Snippet
	History  []*entity.ChatTurn // oldest first
}

type Result struct {
	Prompt string
	// Snippets that fit the context budget, in retrieval order.
	Used   []retriever.Snippet
	Tokens int
}

type Builder struct {
	lx            *lexicon.Lexicon
	historyTurns  int
	contextBudget int
	counter       TokenCounter
}

// NewBuilder renders the last historyTurns turns and at most contextBudget
// tokens of retrieved context (0 disables the budget).
func NewBuilder(lx *lexicon.Lexicon, historyTurns, contextBudget int, counter TokenCounter) *Builder {
	if counter == nil {
		counter = RuneCounter{}
	}
	return &Builder{lx: lx, historyTurns: historyTurns, contextBudget: contextBudget, counter: counter}
}

// Build lays the prompt out as preamble, profile, context, history, current
// question and response guidelines.
func (b *Builder) Build(in Input) Result {
	var sb strings.Builder
	labels := b.lx.Labels

	sb.WriteString(b.lx.Preamble)
	sb.WriteString("\n\n")

	if in.Profile != nil && !in.Profile.IsEmpty() {
		b.writeProfile(&sb, in.Profile)
	}

	used := b.fitContext(in.Snippets)
	if len(used) > 0 {
		fmt.Fprintf(&sb, "%s:\n", labels.Context)
		for i, s := range used {
			fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, s.Source, strings.TrimSpace(s.Content))
		}
		sb.WriteString("\n")
	}

	turns := history.Tail(in.History, b.historyTurns)
	if len(turns) > 0 {
		fmt.Fprintf(&sb, "%s:\n", labels.History)
		for _, t := range turns {
			fmt.Fprintf(&sb, "%s: %s\n", labels.User, t.UserMessage)
			fmt.Fprintf(&sb, "%s: %s\n", labels.Assistant, t.BotResponse)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%s: %s\n\n", labels.Question, strings.TrimSpace(in.Message))

	if instructions := b.lx.ResolvedInstructions(); len(instructions) > 0 {
		fmt.Fprintf(&sb, "%s:\n", labels.Instructions)
		for _, line := range instructions {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%s:\n", labels.Answer)

	out := sb.String()
	return Result{Prompt: out, Used: used, Tokens: b.counter.Count(out)}
}

func (b *Builder) writeProfile(sb *strings.Builder, p *entity.Profile) {
	f := b.lx.Labels.Fields
	fmt.Fprintf(sb, "%s:\n", b.lx.Labels.Profile)
	if p.Name != "" {
		fmt.Fprintf(sb, "- %s: %s\n", f.Name, p.Name)
	}
	if p.Level != "" {
		fmt.Fprintf(sb, "- %s: %s\n", f.Level, p.Level)
	}
	if len(p.EnrolledCourses) > 0 {
		fmt.Fprintf(sb, "- %s: %s\n", f.EnrolledCourses, strings.Join(p.EnrolledCourses, ", "))
	}
	fmt.Fprintf(sb, "- %s: %d\n", f.CompletedCourses, p.CompletedCourses)
	fmt.Fprintf(sb, "- %s: %d\n", f.InProgress, p.InProgress)
	if p.AverageProgress > 0 {
		fmt.Fprintf(sb, "- %s: %.0f%%\n", f.AverageProgress, p.AverageProgress)
	}
	sb.WriteString("\n")
}

// fitContext keeps snippets in order until the token budget is spent. The
// first snippet is always kept.
func (b *Builder) fitContext(snippets []retriever.Snippet) []retriever.Snippet {
	if len(snippets) == 0 {
		return nil
	}
	if b.contextBudget <= 0 {
		return snippets
	}
	used := make([]retriever.Snippet, 0, len(snippets))
	spent := 0
	for i, s := range snippets {
		cost := b.counter.Count(s.Content)
		if i > 0 && spent+cost > b.contextBudget {
			break
		}
		spent += cost
		used = append(used, s)
	}
	return used
}

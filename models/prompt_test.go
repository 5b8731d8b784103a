package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSkipsEmptySections(t *testing.T) {
	p := &Prompt{
		TaskContext:   "You are a support agent.",
		ImmediateTask: "Answer the customer's question.",
	}

	out := p.Render()
	assert.Contains(t, out, "## Task Context\nYou are a support agent.")
	assert.Contains(t, out, "## Immediate Task\nAnswer the customer's question.")
	assert.NotContains(t, out, "## Tone Context")
	assert.NotContains(t, out, "## Prefilled Response")
}

func TestRenderPreservesMethodologyOrder(t *testing.T) {
	p := &Prompt{
		PrefilledResponse: "Sure, here is",
		TaskContext:       "You are a lawyer.",
		ThinkingSteps:     "Reason step by step.",
	}

	out := p.Render()
	ctx := strings.Index(out, "## Task Context")
	think := strings.Index(out, "## Thinking Steps")
	prefill := strings.Index(out, "## Prefilled Response")
	assert.True(t, ctx < think && think < prefill, "sections must render in methodology order")
}

func TestRenderEmptyPrompt(t *testing.T) {
	p := &Prompt{}
	assert.Empty(t, p.Render())
}

func TestSectionsParallelToNames(t *testing.T) {
	p := &Prompt{}
	assert.Len(t, p.Sections(), len(SectionNames))
	assert.Len(t, SectionNames, 10)
}

func TestIsPersonal(t *testing.T) {
	teamID := uint(3)
	assert.True(t, (&Prompt{}).IsPersonal())
	assert.False(t, (&Prompt{TeamID: &teamID}).IsPersonal())
}

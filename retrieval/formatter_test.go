package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
)

func TestFormat_Empty(t *testing.T) {
	text, tokens := NewFormatter(nil).Format(nil)
	assert.Empty(t, text)
	assert.Zero(t, tokens)
}

func TestFormat_Layout(t *testing.T) {
	items := []core.RetrievedItem{
		{Type: core.ConnectorType("calendar"), Summary: "Standup (Mon Jan 2 09:00)", Content: "daily", Similarity: 0.85},
		{Type: core.ItemMessage, Content: "ramen on friday?", Similarity: 0.8, Metadata: core.ItemMetadata{ContainerTitle: "Lunch"}},
		{Type: core.ItemFile, Content: "Q3 roadmap", Similarity: 0.75},
		{Type: core.ItemMemory, Content: "favorite food: ramen", Similarity: 0.62},
	}
	text, tokens := NewFormatter(nil).Format(items)

	want := contextPreamble + "\n" +
		"\n## User Memories\n- favorite food: ramen\n" +
		"\n## Relevant Past Conversations\n- [Lunch] ramen on friday?\n" +
		"\n## Relevant Files\n- Q3 roadmap\n" +
		"\n## From Calendar\n- Standup (Mon Jan 2 09:00)\n" +
		"\n" + contextPostamble
	assert.Equal(t, want, text)
	assert.Equal(t, len(text)/4, tokens)
}

func TestFormat_OmitsEmptyGroups(t *testing.T) {
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{
		{Type: core.ItemFile, Content: "notes.md"},
	})
	assert.Contains(t, text, "## Relevant Files")
	assert.NotContains(t, text, "## User Memories")
	assert.NotContains(t, text, "## Relevant Past Conversations")
	assert.True(t, strings.HasSuffix(text, "\n\n"+contextPostamble))
}

func TestFormat_CollapsesWhitespace(t *testing.T) {
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{
		{Type: core.ItemMessage, Content: "line one\n\n  line\ttwo  ", Metadata: core.ItemMetadata{ContainerTitle: " Weekly\nsync "}},
	})
	assert.Contains(t, text, "\n- [Weekly sync] line one line two\n")
}

func TestFormat_TruncatesLongEntries(t *testing.T) {
	long := strings.Repeat("é", 350)
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{
		{Type: core.ItemMessage, Content: long},
		{Type: core.ItemMemory, Content: "bio: " + long},
		{Type: core.ConnectorType("email"), Content: long},
	})

	msgs := sectionLines(text, headingMessages)
	require.Len(t, msgs, 1)
	assert.Equal(t, "- "+strings.Repeat("é", 300)+"...", msgs[0])

	mail := sectionLines(text, "From Email")
	require.Len(t, mail, 1)
	assert.Equal(t, "- "+strings.Repeat("é", 300)+"...", mail[0])

	mems := sectionLines(text, headingMemories)
	require.Len(t, mems, 1)
	assert.Equal(t, "- bio: "+long, mems[0])
}

func TestFormat_ExactLengthIsNotTruncated(t *testing.T) {
	exact := strings.Repeat("a", 300)
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{{Type: core.ItemFile, Content: exact}})
	assert.Equal(t, []string{"- " + exact}, sectionLines(text, headingFiles))
}

func TestFormat_ConnectorOrderAndLabels(t *testing.T) {
	cfg := *DefaultConfig
	cfg.Connectors = []ConnectorConfig{
		{Kind: "email", Label: "Recent Email"},
		{Kind: "calendar"},
	}
	items := []core.RetrievedItem{
		{Type: core.ConnectorType("zendesk"), Content: "ticket"},
		{Type: core.ConnectorType("calendar"), Content: "standup"},
		{Type: core.ConnectorType("drive"), Content: "doc"},
		{Type: core.ConnectorType("email"), Content: "invoice"},
	}
	text, _ := NewFormatter(&cfg).Format(items)

	var headings []string
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(l, "## ") {
			headings = append(headings, strings.TrimPrefix(l, "## "))
		}
	}
	assert.Equal(t, []string{"Recent Email", "From Calendar", "From Drive", "From Zendesk"}, headings)
}

func TestFormat_PrefersSummaryForConnectors(t *testing.T) {
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{
		{Type: core.ConnectorType("email"), Summary: "Invoice from ACME", Content: "full body text"},
	})
	assert.Equal(t, []string{"- Invoice from ACME"}, sectionLines(text, "From Email"))
}

func TestFormat_KeepsRankOrderWithinGroup(t *testing.T) {
	text, _ := NewFormatter(nil).Format([]core.RetrievedItem{
		{Type: core.ItemMessage, Content: "first", Similarity: 0.9},
		{Type: core.ItemMemory, Content: "k: v", Similarity: 0.8},
		{Type: core.ItemMessage, Content: "second", Similarity: 0.7},
	})
	assert.Equal(t, []string{"- first", "- second"}, sectionLines(text, headingMessages))
	assert.Less(t, strings.Index(text, headingMemories), strings.Index(text, headingMessages))
}

func TestEstimateTokens(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, 0, f.EstimateTokens(""))
	assert.Equal(t, 0, f.EstimateTokens("abc"))
	assert.Equal(t, 2, f.EstimateTokens("abcdefgh"))
	assert.Equal(t, 3, f.EstimateTokens("日本語の"))
	assert.Equal(t, 3, f.EstimateTokens("héllo wörld"))

	text, tokens := f.Format([]core.RetrievedItem{{Type: core.ItemMessage, Content: "Café crème at the Zürich office"}})
	assert.Equal(t, len(text)/4, tokens)
}

func TestNewFormatter_ZeroSizesFallBack(t *testing.T) {
	f := NewFormatter(&Config{})
	assert.Equal(t, 2, f.EstimateTokens("abcdefgh"))

	text, _ := f.Format([]core.RetrievedItem{{Type: core.ItemMessage, Content: strings.Repeat("x", 400)}})
	assert.NotContains(t, text, strings.Repeat("x", 301))
}

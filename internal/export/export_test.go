package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func sampleDoc() *Document {
	return &Document{
		Title:     "Stats",
		CreatedAt: t0,
		Turns: []chat.Turn{
			{Role: chat.RoleUser, Text: "What is a p-value?", CreatedAt: t0},
			{Role: chat.RoleAssistant, Text: "A **p-value** is a probability.\nSmall means surprising.", CreatedAt: t0.Add(2 * time.Second)},
			{Role: chat.RoleUser, Text: "Thanks", CreatedAt: t0.Add(time.Minute)},
			{Role: chat.RoleAssistant, Text: "You're welcome.", CreatedAt: t0.Add(time.Minute + time.Second)},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"text", FormatText},
		{"", FormatText},
		{"md", FormatMarkdown},
		{"Markdown", FormatMarkdown},
		{".html", FormatHTML},
		{"ipynb", FormatNotebook},
		{"notebook", FormatNotebook},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRender_Text(t *testing.T) {
	out, err := Render(FormatText, sampleDoc())
	require.NoError(t, err)

	want := "[2025-03-04 10:00:00] User: What is a p-value?\n" +
		"[2025-03-04 10:00:02] Assistant: A **p-value** is a probability.\nSmall means surprising.\n" +
		"[2025-03-04 10:01:00] User: Thanks\n" +
		"[2025-03-04 10:01:01] Assistant: You're welcome.\n"
	assert.Equal(t, want, string(out))
}

func TestRender_TextEmpty(t *testing.T) {
	out, err := Render(FormatText, &Document{Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(FormatMarkdown, sampleDoc())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Stats\n"))
	assert.Contains(t, md, "4 messages")
	assert.Contains(t, md, "A **p-value** is a probability.\nSmall means surprising.\n")
	assert.NotContains(t, md, `\n`)

	// Role sections appear in turn order.
	var roles []string
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "### ") {
			roles = append(roles, line[4:strings.Index(line, " · ")])
		}
	}
	assert.Equal(t, []string{"**User**", "**Assistant**", "**User**", "**Assistant**"}, roles)
}

func TestRender_HTML(t *testing.T) {
	doc := sampleDoc()
	doc.Title = "A & B"
	out, err := Render(FormatHTML, doc)
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<title>A &amp; B</title>")
	assert.Contains(t, page, "<strong>p-value</strong>")
	assert.Less(t, strings.Index(page, "What is a p-value?"), strings.Index(page, "Thanks"))
	assert.True(t, strings.HasSuffix(page, "</html>\n"))
}

func TestRender_HTMLDoesNotPassRawHTML(t *testing.T) {
	doc := &Document{Title: "x", Turns: []chat.Turn{
		{Role: chat.RoleAssistant, Text: "<script>alert(1)</script>", CreatedAt: t0},
	}}
	out, err := Render(FormatHTML, doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestRender_HTMLKeepsTagLikeText(t *testing.T) {
	doc := &Document{Title: "x", Turns: []chat.Turn{
		{Role: chat.RoleAssistant, Text: "Filter rows with df.loc[<condition>] and keep <b>all</b> of them.", CreatedAt: t0},
	}}
	out, err := Render(FormatHTML, doc)
	require.NoError(t, err)
	page := string(out)
	assert.NotContains(t, page, "raw HTML omitted")
	assert.Contains(t, page, "df.loc[&lt;condition&gt;]")
	assert.Contains(t, page, "&lt;b&gt;all&lt;/b&gt;")
}

func decodeNotebook(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var nb map[string]any
	require.NoError(t, json.Unmarshal(data, &nb))
	return nb
}

func cellSources(t *testing.T, nb map[string]any) (types []string, sources []string) {
	t.Helper()
	cells, ok := nb["cells"].([]any)
	require.True(t, ok)
	for _, c := range cells {
		m := c.(map[string]any)
		types = append(types, m["cell_type"].(string))
		var sb strings.Builder
		for _, line := range m["source"].([]any) {
			sb.WriteString(line.(string))
		}
		sources = append(sources, sb.String())
	}
	return types, sources
}

func TestRender_Notebook(t *testing.T) {
	out, err := Render(FormatNotebook, sampleDoc())
	require.NoError(t, err)
	nb := decodeNotebook(t, out)

	assert.EqualValues(t, 4, nb["nbformat"])
	types, sources := cellSources(t, nb)
	require.Len(t, sources, 5)
	assert.Equal(t, []string{"markdown", "markdown", "markdown", "markdown", "markdown"}, types)
	assert.Equal(t, "# Stats", sources[0])
	assert.Equal(t, "**Assistant** · 2025-03-04 10:00:02\n\nA **p-value** is a probability.\nSmall means surprising.", sources[2])
	assert.NotContains(t, string(out), `\\n`)
}

func TestRender_NotebookPythonFences(t *testing.T) {
	reply := "Try this:\n```python\nimport pandas as pd\ndf = pd.read_csv(\"x.csv\")\n```\nThen inspect `df`.\n```bash\nls\n```"
	doc := &Document{Title: "Pandas", Turns: []chat.Turn{
		{Role: chat.RoleUser, Text: "```python\nnot code\n```", CreatedAt: t0},
		{Role: chat.RoleAssistant, Text: reply, CreatedAt: t0},
	}}
	out, err := Render(FormatNotebook, doc)
	require.NoError(t, err)

	types, sources := cellSources(t, decodeNotebook(t, out))
	assert.Equal(t, []string{"markdown", "markdown", "markdown", "code", "markdown"}, types)
	assert.Contains(t, sources[1], "```python\nnot code\n```", "user fences stay markdown")
	assert.Equal(t, "import pandas as pd\ndf = pd.read_csv(\"x.csv\")", sources[3])
	assert.Equal(t, "Then inspect `df`.\n```bash\nls\n```", sources[4])
}

func TestSplitPython_Unterminated(t *testing.T) {
	text := "```python\nprint(1)\n"
	segs := splitPython(text)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].code)
	assert.Equal(t, text, segs[0].text)
}

func TestSourceLines(t *testing.T) {
	assert.Equal(t, []string{}, sourceLines(""))
	assert.Equal(t, []string{"a\n", "b"}, sourceLines("a\nb"))
	assert.Equal(t, []string{"a\n"}, sourceLines("a\n"))
}

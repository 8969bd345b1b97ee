package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
)

// nbformat 4 document. Minor version 4 keeps cell ids optional.
type notebook struct {
	Cells         []cell           `json:"cells"`
	Metadata      notebookMetadata `json:"metadata"`
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
}

type notebookMetadata struct {
	Title        string       `json:"title,omitempty"`
	KernelSpec   kernelSpec   `json:"kernelspec"`
	LanguageInfo languageInfo `json:"language_info"`
}

type kernelSpec struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Name        string `json:"name"`
}

type languageInfo struct {
	Name string `json:"name"`
}

type cell struct {
	CellType       string         `json:"cell_type"`
	Metadata       map[string]any `json:"metadata"`
	Source         []string       `json:"source"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Outputs        []any          `json:"outputs,omitempty"`
}

func markdownCell(text string) cell {
	return cell{CellType: "markdown", Metadata: map[string]any{}, Source: sourceLines(text)}
}

func codeCell(code string) cell {
	return cell{CellType: "code", Metadata: map[string]any{}, Source: sourceLines(code), Outputs: []any{}}
}

// MarshalJSON emits execution_count and outputs for code cells only, as
// nbformat requires.
func (c cell) MarshalJSON() ([]byte, error) {
	if c.CellType != "code" {
		return json.Marshal(struct {
			CellType string         `json:"cell_type"`
			Metadata map[string]any `json:"metadata"`
			Source   []string       `json:"source"`
		}{c.CellType, c.Metadata, c.Source})
	}
	outputs := c.Outputs
	if outputs == nil {
		outputs = []any{}
	}
	return json.Marshal(struct {
		CellType       string         `json:"cell_type"`
		ExecutionCount *int           `json:"execution_count"`
		Metadata       map[string]any `json:"metadata"`
		Outputs        []any          `json:"outputs"`
		Source         []string       `json:"source"`
	}{c.CellType, c.ExecutionCount, c.Metadata, outputs, c.Source})
}

// sourceLines splits text the way notebooks store it: every line but the
// last keeps its trailing newline.
func sourceLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// renderNotebook emits a heading cell, then one markdown cell per turn.
// Python code fences in assistant turns become their own code cells so the
// examples can be run directly.
func renderNotebook(doc *Document) ([]byte, error) {
	title := doc.Title
	if title == "" {
		title = "Chat"
	}
	nb := notebook{
		Metadata: notebookMetadata{
			Title:        title,
			KernelSpec:   kernelSpec{DisplayName: "Python 3", Language: "python", Name: "python3"},
			LanguageInfo: languageInfo{Name: "python"},
		},
		NBFormat:      4,
		NBFormatMinor: 4,
	}
	nb.Cells = append(nb.Cells, markdownCell("# "+title))

	for _, t := range doc.Turns {
		label := fmt.Sprintf("**%s** · %s", RoleLabel(t.Role), t.CreatedAt.UTC().Format(timestampLayout))
		segs := []segment{{text: t.Text}}
		if t.Role == chat.RoleAssistant {
			segs = splitPython(t.Text)
		}
		if segs[0].code {
			nb.Cells = append(nb.Cells, markdownCell(label))
		} else {
			segs[0].text = label + "\n\n" + segs[0].text
		}
		for _, s := range segs {
			if s.code {
				nb.Cells = append(nb.Cells, codeCell(s.text))
			} else {
				nb.Cells = append(nb.Cells, markdownCell(s.text))
			}
		}
	}

	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return nil, fmt.Errorf("render notebook: %w", err)
	}
	return append(data, '\n'), nil
}

type segment struct {
	text string
	code bool
}

// splitPython cuts text around ```python / ```py fences. Other fences stay
// inside the markdown segments. An unterminated fence is left as markdown.
func splitPython(text string) []segment {
	var segs []segment
	var md, code strings.Builder
	inCode, sawCode := false, false

	flushMD := func() {
		if s := strings.Trim(md.String(), "\n"); s != "" {
			segs = append(segs, segment{text: s})
		}
		md.Reset()
	}

	lines := strings.SplitAfter(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if !inCode {
			lang := strings.ToLower(strings.TrimPrefix(trimmed, "```"))
			if strings.HasPrefix(trimmed, "```") && (lang == "python" || lang == "py") && hasClosingFence(lines[i+1:]) {
				flushMD()
				inCode, sawCode = true, true
				continue
			}
			md.WriteString(line)
			continue
		}
		if trimmed == "```" {
			segs = append(segs, segment{text: strings.TrimRight(code.String(), "\n"), code: true})
			code.Reset()
			inCode = false
			continue
		}
		code.WriteString(line)
	}
	if !sawCode {
		return []segment{{text: text}}
	}
	flushMD()
	return segs
}

func hasClosingFence(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == "```" {
			return true
		}
	}
	return false
}

// Package export renders a conversation into downloadable documents.
// Every renderer is a pure function of the turns: order and role labels are
// kept exactly as stored and turn text is never escaped or rewritten.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatNotebook Format = "notebook"
)

// Formats lists the supported formats in display order.
var Formats = []Format{FormatText, FormatMarkdown, FormatHTML, FormatNotebook}

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "text", "txt", "":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "notebook", "ipynb":
		return FormatNotebook, nil
	}
	return "", fmt.Errorf("unknown export format %q (want text, markdown, html or notebook)", s)
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	case FormatNotebook:
		return ".ipynb"
	default:
		return ".txt"
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatNotebook:
		return "application/x-ipynb+json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Document is the input of every renderer.
type Document struct {
	Title     string
	CreatedAt time.Time
	Turns     []chat.Turn
}

// Render encodes doc in format f.
func Render(f Format, doc *Document) ([]byte, error) {
	switch f {
	case FormatText:
		return renderText(doc), nil
	case FormatMarkdown:
		return renderMarkdown(doc), nil
	case FormatHTML:
		return renderHTML(doc)
	case FormatNotebook:
		return renderNotebook(doc)
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

const timestampLayout = "2006-01-02 15:04:05"

// RoleLabel is the capitalized role name used in every format.
func RoleLabel(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return "User"
	case chat.RoleAssistant:
		return "Assistant"
	}
	if r == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// renderText writes one "[timestamp] Role: text" entry per turn. Multi-line
// text continues on the following lines unchanged.
func renderText(doc *Document) []byte {
	var sb strings.Builder
	for _, t := range doc.Turns {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", t.CreatedAt.UTC().Format(timestampLayout), RoleLabel(t.Role), t.Text)
	}
	return []byte(sb.String())
}

// renderMarkdown writes a title block followed by one section per turn with
// a bold role label.
func renderMarkdown(doc *Document) []byte {
	var sb strings.Builder
	title := doc.Title
	if title == "" {
		title = "Chat"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if !doc.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "_Started %s UTC · %d messages_\n\n", doc.CreatedAt.UTC().Format(timestampLayout), len(doc.Turns))
	} else {
		fmt.Fprintf(&sb, "_%d messages_\n\n", len(doc.Turns))
	}
	sb.WriteString("---\n")
	for _, t := range doc.Turns {
		fmt.Fprintf(&sb, "\n### **%s** · %s\n\n", RoleLabel(t.Role), t.CreatedAt.UTC().Format(timestampLayout))
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

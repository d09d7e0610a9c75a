package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atikulmunna/logbook/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Output formats accepted by New.
const (
	FormatPlain = "plain"
	FormatText  = "text"
	FormatJSON  = "json"
)

// Renderer writes Log values to an output stream.
type Renderer interface {
	Render(entry model.Log) error
}

// New returns the renderer for format writing to w. Unknown formats render plain.
func New(format string, w io.Writer) Renderer {
	switch strings.ToLower(format) {
	case FormatText:
		return NewTextRenderer(w)
	case FormatJSON:
		return NewJSONRenderer(w)
	default:
		return NewPlainRenderer(w)
	}
}

// ---------------------------------------------------------------------------
// Plain Renderer (Log{...} form, one blank line before each entry)
// ---------------------------------------------------------------------------

// PlainRenderer prints each entry's String form preceded by an empty line.
type PlainRenderer struct {
	w io.Writer
}

func NewPlainRenderer(w io.Writer) *PlainRenderer {
	return &PlainRenderer{w: w}
}

func (r *PlainRenderer) Render(entry model.Log) error {
	_, err := fmt.Fprintf(r.w, "\n%s\n", entry)
	return err
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleFatal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true) // cyan
)

// TextRenderer prints entries with severity-based colors.
type TextRenderer struct {
	w io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(entry model.Log) error {
	tag := styleLevelTag(entry.Level())
	src := styleSource.Render(entry.Source())

	_, err := fmt.Fprintf(r.w, "%s %s %s %s\n", entry.Timestamp(), tag, src, entry.Message())
	return err
}

// styleLevelTag colors a free-form level by its common spelling.
func styleLevelTag(level string) string {
	padded := fmt.Sprintf("%-5s", level)
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return styleDebug.Render(padded)
	case "WARN", "WARNING":
		return styleWarn.Render(padded)
	case "ERROR", "ERR":
		return styleError.Render(padded)
	case "FATAL", "CRITICAL":
		return styleFatal.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each entry as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(entry model.Log) error {
	return r.enc.Encode(entry)
}

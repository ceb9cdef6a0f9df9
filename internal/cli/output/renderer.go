// Package output renders command results for terminals, pipes, and
// machine consumers. A Renderer wraps the command's stdout/stderr and
// resolves the requested mode: in auto mode a TTY gets styled tables
// and a pipe gets markdown, so scripted callers never see ANSI codes.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are rendered.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "md"
)

// Renderer writes formatted output to a command's streams.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer builds a renderer for the given streams. Color output is
// enabled only when out is a terminal, regardless of mode.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, writerIsTerminal(out), mode)
}

// NewRendererWithTTY builds a renderer with an explicit terminal state,
// letting tests pin auto-mode resolution on plain buffers.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   normalizeMode(mode),
		isTTY:  isTTY,
		styles: newStyles(lr),
	}
}

func normalizeMode(m Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(m))) {
	case "", "auto":
		return ModeAuto
	case "table", "text":
		return ModeTable
	case "json":
		return ModeJSON
	case "csv":
		return ModeCSV
	case "md", "markdown":
		return ModeMarkdown
	default:
		return ModeAuto
	}
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto using the terminal state: tables on a
// TTY, markdown everywhere else.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeMarkdown
}

// IsTTY reports whether the output stream is a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Writer returns the underlying output stream, for encoders that write
// directly.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the error stream.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Styles returns the lipgloss styles bound to this renderer's stream.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Println writes a line to the output stream.
func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.out, args...)
}

// Printf writes formatted text to the output stream.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Success prints a line in the success style.
func (r *Renderer) Success(text string) {
	r.Println(r.styles.Success.Render(text))
}

// Warnf prints a formatted warning line to the error stream.
func (r *Renderer) Warnf(format string, args ...any) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints a formatted error line to the error stream.
func (r *Renderer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// StatusLine prints a glyph-prefixed item line with an optional muted detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	marker := r.styles.StatusInactive.String()
	if status == "success" || status == "active" {
		marker = r.styles.StatusActive.String()
	}
	line := fmt.Sprintf("%s %s", marker, name)
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// Header prints a section heading in the renderer's effective mode.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println()
		return
	}
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println()
	r.Println(style.Render(text))
	r.Println()
}

// FormatHeader returns a markdown heading of the given level.
func FormatHeader(level int, text string) string {
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown key/value bullet.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

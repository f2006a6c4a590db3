// Package notify prints the colored status lines an operator watches during a run.
// Every line is mirrored into the structured log so the log file holds the same story.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Level determines the tag and color of a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelSkip
	LevelWarn
	LevelError
)

type style struct {
	tag   string
	color *color.Color
	slog  slog.Level
}

var styles = map[Level]style{
	LevelInfo:    {"[INFO]", color.New(color.FgBlue), slog.LevelInfo},
	LevelSuccess: {"[OK]", color.New(color.FgGreen), slog.LevelInfo},
	LevelSkip:    {"[SKIP]", color.New(color.FgHiBlack), slog.LevelInfo},
	LevelWarn:    {"[WARN]", color.New(color.FgYellow), slog.LevelWarn},
	LevelError:   {"[ERROR]", color.New(color.FgRed, color.Bold), slog.LevelError},
}

// Notifier writes status lines to an operator-facing writer.
type Notifier struct {
	out    io.Writer
	logger *slog.Logger
	color  bool
}

// New returns a Notifier writing to out. A nil out means os.Stdout; a nil
// logger disables mirroring. Tags are colored only when out is a terminal
// and NO_COLOR is unset.
func New(out io.Writer, logger *slog.Logger) *Notifier {
	if out == nil {
		out = os.Stdout
	}
	return &Notifier{out: out, logger: logger, color: isTerminal(out) && !color.NoColor}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Discard returns a Notifier that drops everything. Used by tests and dry runs.
func Discard() *Notifier {
	return New(io.Discard, nil)
}

// Writer returns the operator-facing writer, for subprocess output.
func (n *Notifier) Writer() io.Writer {
	return n.out
}

func (n *Notifier) Infof(format string, args ...any)    { n.write(LevelInfo, format, args...) }
func (n *Notifier) Successf(format string, args ...any) { n.write(LevelSuccess, format, args...) }
func (n *Notifier) Skipf(format string, args ...any)    { n.write(LevelSkip, format, args...) }
func (n *Notifier) Warnf(format string, args ...any)    { n.write(LevelWarn, format, args...) }
func (n *Notifier) Errorf(format string, args ...any)   { n.write(LevelError, format, args...) }

// Plain writes an untagged line, e.g. the final summary.
func (n *Notifier) Plain(s string) {
	fmt.Fprintln(n.out, s)
}

func (n *Notifier) write(level Level, format string, args ...any) {
	st := styles[level]
	msg := fmt.Sprintf(format, args...)

	if n.color {
		st.color.Fprint(n.out, st.tag)
	} else {
		fmt.Fprint(n.out, st.tag)
	}
	fmt.Fprintf(n.out, " %s\n", msg)

	if n.logger != nil {
		n.logger.Log(context.Background(), st.slog, msg, "status", st.tag)
	}
}

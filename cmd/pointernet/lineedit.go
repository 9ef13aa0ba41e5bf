package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// stdinReader is shared so buffered input survives across prompts.
var stdinReader = bufio.NewReader(os.Stdin)

// readPlainLine reads a line without terminal handling. A final line without
// a newline is returned before io.EOF.
func readPlainLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

// lineEditor holds the state of one prompt line in raw terminal mode. Keys
// are fed one byte at a time; escape sequences are buffered until complete.
type lineEditor struct {
	prompt  string
	out     io.Writer
	history *[]string

	line   []byte
	cursor int

	esc    int
	escBuf strings.Builder

	histPos   int
	browsing  bool
	histDraft string
}

// editResult tells the caller what a key did to the line.
type editResult int

const (
	editContinue editResult = iota
	editSubmit
	editAbort
)

func newLineEditor(prompt string, out io.Writer, history *[]string) *lineEditor {
	return &lineEditor{
		prompt:  prompt,
		out:     out,
		history: history,
		line:    make([]byte, 0, 128),
		histPos: len(*history),
	}
}

func (e *lineEditor) String() string { return string(e.line) }

func (e *lineEditor) redraw() {
	_, _ = fmt.Fprintf(e.out, "\r%s%s\x1b[K", e.prompt, e.line)
	if e.cursor < len(e.line) {
		_, _ = fmt.Fprintf(e.out, "\r%s%s", e.prompt, e.line[:e.cursor])
	}
}

// feed processes one input byte.
func (e *lineEditor) feed(b byte) editResult {
	switch e.esc {
	case 1:
		e.esc = 0
		if b == '[' {
			e.esc = 2
			e.escBuf.Reset()
		}
		return editContinue
	case 2:
		e.escBuf.WriteByte(b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			e.esc = 0
			e.csi(e.escBuf.String())
		}
		return editContinue
	}

	switch b {
	case 27: // ESC
		e.esc = 1
	case '\r', '\n':
		_, _ = fmt.Fprint(e.out, "\r\n")
		if s := e.String(); strings.TrimSpace(s) != "" {
			*e.history = append(*e.history, s)
		}
		return editSubmit
	case 3: // Ctrl+C
		_, _ = fmt.Fprint(e.out, "^C\r\n")
		return editAbort
	case 4: // Ctrl+D
		if len(e.line) == 0 {
			_, _ = fmt.Fprint(e.out, "\r\n")
			return editAbort
		}
	case 127, 8: // backspace
		if e.cursor > 0 {
			e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
			e.cursor--
			e.redraw()
		}
	case 1: // Ctrl+A
		e.cursor = 0
		e.redraw()
	case 5: // Ctrl+E
		e.cursor = len(e.line)
		e.redraw()
	case 21: // Ctrl+U
		e.line = e.line[:0]
		e.cursor = 0
		e.redraw()
	default:
		if b >= 32 {
			e.line = append(e.line, 0)
			copy(e.line[e.cursor+1:], e.line[e.cursor:])
			e.line[e.cursor] = b
			e.cursor++
			e.redraw()
		}
	}
	return editContinue
}

func (e *lineEditor) csi(seq string) {
	switch seq {
	case "A":
		e.historyUp()
	case "B":
		e.historyDown()
	case "D":
		if e.cursor > 0 {
			e.cursor--
		}
	case "C":
		if e.cursor < len(e.line) {
			e.cursor++
		}
	case "H":
		e.cursor = 0
	case "F":
		e.cursor = len(e.line)
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
		}
	default:
		return
	}
	e.redraw()
}

func (e *lineEditor) historyUp() {
	h := *e.history
	if len(h) == 0 {
		return
	}
	if !e.browsing {
		e.histDraft = e.String()
		e.browsing = true
		e.histPos = len(h)
	}
	if e.histPos > 0 {
		e.histPos--
		e.setLine(h[e.histPos])
	}
}

func (e *lineEditor) historyDown() {
	if !e.browsing {
		return
	}
	h := *e.history
	if e.histPos < len(h)-1 {
		e.histPos++
		e.setLine(h[e.histPos])
		return
	}
	e.histPos = len(h)
	e.browsing = false
	e.setLine(e.histDraft)
}

func (e *lineEditor) setLine(s string) {
	e.line = append(e.line[:0], s...)
	e.cursor = len(e.line)
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

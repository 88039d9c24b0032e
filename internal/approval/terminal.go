package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Terminal prompts on an interactive terminal. When in is not a terminal
// every request resolves to NoDecision without reading.
type Terminal struct {
	in  *os.File
	out io.Writer

	once  sync.Once
	lines *lineReader
}

// NewTerminal creates a Terminal reading from in and writing to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

func (t *Terminal) Name() string { return "terminal" }

// Interactive reports whether the input is attached to a terminal.
func (t *Terminal) Interactive() bool {
	return t.in != nil && term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) Request(ctx context.Context, p Prompt) (Choice, error) {
	if !t.Interactive() {
		return NoDecision, nil
	}
	t.once.Do(func() { t.lines = newLineReader(t.in) })
	return ask(ctx, t.lines, t.out, p)
}

// lineReader owns the input for the lifetime of a Terminal. A prompt that
// times out leaves an unread line on the channel for the next prompt
// instead of a reader goroutine that swallows it.
type lineReader struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string), done: make(chan struct{})}
	go lr.run(bufio.NewReader(r))
	return lr
}

func (lr *lineReader) run(br *bufio.Reader) {
	defer close(lr.lines)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case lr.lines <- line:
			case <-lr.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Close stops delivering lines. A read already blocked on the input
// returns once the input does.
func (lr *lineReader) Close() {
	lr.once.Do(func() { close(lr.done) })
}

// ask writes the prompt and parses the next answer line.
func ask(ctx context.Context, lr *lineReader, w io.Writer, p Prompt) (Choice, error) {
	labels := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		labels = append(labels, string(o))
	}
	if _, err := fmt.Fprintf(w, "%s\n[%s]: ", p.Message, strings.Join(labels, "/")); err != nil {
		return NoDecision, fmt.Errorf("write prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return NoDecision, ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			return NoDecision, nil
		}
		return parseChoice(line, p.Options), nil
	}
}

// parseChoice matches an answer against the options by full label or
// first letter, case-insensitively.
func parseChoice(line string, options []Choice) Choice {
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "" {
		return NoDecision
	}
	for _, o := range options {
		label := strings.ToLower(string(o))
		if answer == label || answer == label[:1] {
			return o
		}
	}
	return NoDecision
}

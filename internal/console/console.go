// Package console watches the controlling terminal for the quit key.
package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

const ctrlC = 3

type Console struct {
	in  io.Reader
	raw atomic.Bool
}

func New(in io.Reader) *Console {
	return &Console{in: in}
}

// Run reads single keypresses until Q (either case) or Ctrl-C arrives, then
// calls onQuit and returns. A terminal is switched to raw mode for the
// duration so no Enter is needed. When input ends without a quit key, Run
// keeps waiting for ctx. The returned error is always nil; it exists so Run
// fits an errgroup.
func (c *Console) Run(ctx context.Context, onQuit func()) error {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			slog.Warn("Console stays in line mode, press Q then Enter to quit", "error", fmt.Errorf("set terminal raw mode: %w", err))
		} else {
			c.raw.Store(true)
			defer func() {
				c.raw.Store(false)
				_ = term.Restore(fd, oldState)
			}()
		}
	}

	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(c.in)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				slog.Debug("Console input closed, quit key disabled")
			} else {
				slog.Warn("Console input failed, quit key disabled", "error", err)
			}
			<-ctx.Done()
			return nil
		case b := <-keys:
			if isQuitKey(b) {
				onQuit()
				return nil
			}
		}
	}
}

func isQuitKey(b byte) bool {
	return b == 'q' || b == 'Q' || b == ctrlC
}

// Writer wraps w so that lines written while the terminal is raw still
// start at column zero.
func (c *Console) Writer(w io.Writer) io.Writer {
	return &crlfWriter{w: w, raw: &c.raw}
}

type crlfWriter struct {
	w   io.Writer
	raw *atomic.Bool
}

func (cw *crlfWriter) Write(p []byte) (int, error) {
	if !cw.raw.Load() || bytes.IndexByte(p, '\n') < 0 {
		return cw.w.Write(p)
	}
	out := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	if _, err := cw.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Package tail follows a growing log file from its current end, emitting
// appended lines in order. Rotation is not handled here: if the file is
// replaced the old handle stays attached, and the scheduled restart after
// midnight re-attaches to the fresh file.
package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/wanderlust/wanderbridge/internal/sched"
)

const defaultErrBackoff = 5 * time.Second

// Tailer streams raw log lines appended after Start.
type Tailer struct {
	path       string
	interval   time.Duration
	errBackoff time.Duration
	clk        sched.Clock

	file     *os.File
	position int64
	lines    chan string
	done     chan struct{}
}

// New creates a tailer for path. interval is the idle-poll sleep between
// reads that found no new data (default 1s when zero).
func New(path string, interval time.Duration, clk sched.Clock) *Tailer {
	if interval == 0 {
		interval = time.Second
	}
	return &Tailer{
		path:       path,
		interval:   interval,
		errBackoff: defaultErrBackoff,
		clk:        clk,
		lines:      make(chan string, 100),
		done:       make(chan struct{}),
	}
}

// Lines is the ordered stream of appended lines. Closed when the tailer
// stops.
func (t *Tailer) Lines() <-chan string { return t.lines }

// Start attaches at the current end of file and begins the read loop.
func (t *Tailer) Start(ctx context.Context) error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file

	pos, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.position = pos

	go t.loop(ctx)
	return nil
}

// Stop terminates the read loop and closes the line channel.
func (t *Tailer) Stop() {
	close(t.done)
}

func (t *Tailer) loop(ctx context.Context) {
	defer close(t.lines)
	defer t.file.Close()

	for {
		select {
		case <-t.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		n, err := t.readNewLines(ctx)
		if err != nil {
			// Transient I/O trouble must not kill the bridge; back off
			// and try again.
			log.Printf("tail: read error on %s: %v", t.path, err)
			if t.clk.Sleep(ctx, t.errBackoff) != nil {
				return
			}
			continue
		}
		if n == 0 {
			if t.clk.Sleep(ctx, t.interval) != nil {
				return
			}
		}
	}
}

// readNewLines reads complete lines appended since the last read and
// returns how many were delivered. A trailing partial line is left in
// the file until its newline arrives.
func (t *Tailer) readNewLines(ctx context.Context) (int, error) {
	stat, err := t.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if stat.Size() <= t.position {
		return 0, nil
	}

	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to position: %w", err)
	}

	reader := bufio.NewReader(t.file)
	delivered := 0
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return delivered, fmt.Errorf("reading line: %w", err)
		}

		t.position += int64(len(line))
		line = line[:len(line)-1]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if line == "" {
			continue
		}

		select {
		case t.lines <- line:
			delivered++
		case <-t.done:
			return delivered, nil
		case <-ctx.Done():
			return delivered, nil
		}
	}
	return delivered, nil
}

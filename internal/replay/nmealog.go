package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Log format: line-oriented text, one NMEA sentence per line.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Data lines are: <delay_s>\t<sentence>
//   where delay_s is the decimal number of seconds since the previous
//   sentence (0 for the first) and sentence is the raw "$...*hh" text.
// - Older capture logs carry a wall-clock stamp instead of a delay:
//   <2006-01-02 15:04:05.000000>\t<sentence>. Offsets are then measured
//   from the first stamp and never run backwards.

const stampLayout = "2006-01-02 15:04:05.999999999"

type Record struct {
	// At is the offset of the sentence from the start of the log.
	At       time.Duration
	Sentence string
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	var at time.Duration
	var first time.Time
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			return nil, fmt.Errorf("invalid replay line (missing tab): %q", line)
		}
		delayStr := strings.TrimSpace(line[:tab])
		sentence := strings.TrimSpace(line[tab+1:])
		if delayStr == "" || sentence == "" {
			return nil, fmt.Errorf("invalid replay line (empty field): %q", line)
		}

		if ts, terr := time.Parse(stampLayout, delayStr); terr == nil {
			if first.IsZero() {
				first = ts
			}
			if off := ts.Sub(first); off > at {
				at = off
			}
			recs = append(recs, Record{At: at, Sentence: sentence})
			continue
		}

		delay, err := strconv.ParseFloat(delayStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay delay %q: %w", delayStr, err)
		}
		if delay < 0 {
			return nil, fmt.Errorf("invalid replay delay (negative): %v", delay)
		}

		at += time.Duration(delay * float64(time.Second))
		recs = append(recs, Record{At: at, Sentence: sentence})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

// ReadFile reads a whole log from path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	last   time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

func (ww *Writer) WriteSentence(now time.Time, sentence string) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return errors.New("sentence is empty")
	}

	var d time.Duration
	if !ww.last.IsZero() {
		d = now.Sub(ww.last)
		if d < 0 {
			d = 0
		}
	}
	ww.last = now
	if _, err := fmt.Fprintf(ww.w, "%s\t%s\n", strconv.FormatFloat(d.Seconds(), 'f', -1, 64), sentence); err != nil {
		return err
	}
	return nil
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Play replays records with their relative timing, invoking cb for each
// sentence.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(ctx context.Context, records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(sentence string) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		var lastAt time.Duration
		for i, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if i > 0 {
				wait := r.At - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					if err := sleeper.Sleep(ctx, wait); err != nil {
						return err
					}
				}
			}

			if err := cb(r.Sentence); err != nil {
				return err
			}
			lastAt = r.At
		}

		if !loop {
			return nil
		}
	}
}

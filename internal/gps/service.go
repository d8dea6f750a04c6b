package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"satscope/internal/fix"
	"satscope/internal/metrics"
	"satscope/internal/replay"
	"satscope/internal/satellite"
	"satscope/internal/sentence"
	"satscope/internal/sim"
	"satscope/internal/statebus"
	"satscope/internal/udp"
)

const (
	SourceNMEA   = "nmea"
	SourceGPSD   = "gpsd"
	SourceReplay = "replay"
	SourceSim    = "sim"
)

// Config controls the GNSS reader.
//
// Device may be empty to auto-detect. Most u-blox receivers enumerate as
// /dev/ttyACM* and talk 9600 baud out of the box.
type Config struct {
	Enable bool

	// Source selects how NMEA is ingested: "nmea" (direct serial), "gpsd"
	// "replay" or "sim". When empty, defaults to "nmea".
	Source string

	Device string
	Baud   int

	// GPSDAddr is host:port for gpsd when Source=="gpsd".
	GPSDAddr string

	ReplayPath  string
	ReplaySpeed float64
	ReplayLoop  bool

	// Sim is the simulated receiver when Source=="sim". SimInterval is the
	// epoch spacing; 0 means one second.
	Sim         sim.Receiver
	SimInterval time.Duration

	// RecordPath, when set, receives every raw line in replay format.
	RecordPath string
}

// Deps are the collaborators every ingested line is pushed through.
// Everything except Bus may be nil.
type Deps struct {
	Bus         *statebus.Bus
	Fix         fix.Options
	Metrics     *metrics.Collector
	Rebroadcast *udp.Fanout
	// Now stamps recorded lines; defaults to time.Now.
	Now func() time.Time
}

type Status struct {
	Enabled bool   `json:"enabled"`
	Source  string `json:"source"`

	Device     string `json:"device,omitempty"`
	Baud       int    `json:"baud,omitempty"`
	GPSDAddr   string `json:"gpsd_addr,omitempty"`
	ReplayPath string `json:"replay_path,omitempty"`
	Recording  string `json:"recording,omitempty"`

	Sentences    uint64 `json:"sentences"`
	DecodeErrors uint64 `json:"decode_errors"`

	LastSentenceUTC string `json:"last_sentence_utc,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

type Service struct {
	cfg  Config
	deps Deps

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Status

	sentences    atomic.Uint64
	decodeErrors atomic.Uint64

	mu     sync.Mutex
	closer io.Closer

	recMu    sync.Mutex
	recorder *replay.Writer
}

func New(cfg Config, deps Deps) *Service {
	cfg.Source = normalizeSource(cfg.Source)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Service{cfg: cfg, deps: deps}
	s.last.Store(Status{
		Enabled:    cfg.Enable,
		Source:     cfg.Source,
		Device:     cfg.Device,
		Baud:       cfg.Baud,
		GPSDAddr:   strings.TrimSpace(cfg.GPSDAddr),
		ReplayPath: cfg.ReplayPath,
	})
	return s
}

func normalizeSource(src string) string {
	src = strings.ToLower(strings.TrimSpace(src))
	if src == "" {
		return SourceNMEA
	}
	return src
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	if p := strings.TrimSpace(s.cfg.RecordPath); p != "" {
		w, err := replay.CreateWriter(p)
		if err != nil {
			s.setErrorLocked(fmt.Sprintf("gps record open failed path=%s: %v", p, err))
			return fmt.Errorf("open record log: %w", err)
		}
		s.recMu.Lock()
		s.recorder = w
		s.recMu.Unlock()
		cur := s.Status()
		cur.Recording = p
		s.last.Store(cur)
		log.Printf("gps recording path=%s", p)
	}

	var err error
	switch s.cfg.Source {
	case SourceNMEA:
		err = s.startSerialLocked(ctx)
	case SourceGPSD:
		err = s.startGPSDLocked(ctx)
	case SourceReplay:
		err = s.startReplayLocked(ctx)
	case SourceSim:
		err = s.startSimLocked(ctx)
	default:
		err = fmt.Errorf("unknown gnss source %q", s.cfg.Source)
	}
	if err != nil {
		s.closeRecorder()
	}
	return err
}

func (s *Service) startSerialLocked(ctx context.Context) error {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			s.setErrorLocked("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps auto-detect failed")
		}
	}

	baud := s.cfg.Baud
	if baud == 0 {
		baud = 9600
	}

	f, err := openSerial(device, baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return err
	}
	// Keep the file reference for Close().
	s.closer = f

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cur := s.Status()
	cur.Device = device
	cur.Baud = baud
	s.last.Store(cur)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = f.Close()
		}()

		log.Printf("gps enabled source=nmea device=%s baud=%d", device, baud)
		if err := s.consume(childCtx, f); err != nil {
			s.setError(fmt.Sprintf("gps read stopped: %v", err))
		}
	}()
	return nil
}

func (s *Service) startGPSDLocked(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.GPSDAddr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cur := s.Status()
	cur.GPSDAddr = addr
	s.last.Store(cur)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		log.Printf("gps enabled source=gpsd addr=%s", addr)
		backoff := 250 * time.Millisecond
		maxBackoff := 10 * time.Second

		for {
			select {
			case <-childCtx.Done():
				return
			default:
			}

			conn, err := dialGPSD(childCtx, addr)
			if err != nil {
				s.setError(fmt.Sprintf("gpsd dial failed addr=%s: %v", addr, err))
				t := backoff
				if t > maxBackoff {
					t = maxBackoff
				}
				select {
				case <-childCtx.Done():
					return
				case <-time.After(t):
				}
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}

			// Reset backoff after a successful connection.
			backoff = 250 * time.Millisecond

			s.mu.Lock()
			// Swap the closer so Close() can interrupt an active connection.
			s.closer = conn
			s.mu.Unlock()

			func() {
				defer func() { _ = conn.Close() }()

				if err := gpsdWatch(conn); err != nil {
					s.setError(fmt.Sprintf("gpsd watch failed: %v", err))
					return
				}
				if err := s.consume(childCtx, conn); err != nil {
					s.setError(fmt.Sprintf("gpsd read stopped: %v", err))
				}
			}()
			// Loop and reconnect.
		}
	}()
	return nil
}

func (s *Service) startReplayLocked(ctx context.Context) error {
	path := strings.TrimSpace(s.cfg.ReplayPath)
	if path == "" {
		s.setErrorLocked("gps replay path is empty")
		return fmt.Errorf("gps replay path is empty")
	}
	recs, err := replay.ReadFile(path)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps replay read failed path=%s: %v", path, err))
		return fmt.Errorf("read replay log: %w", err)
	}
	speed := s.cfg.ReplaySpeed
	if speed <= 0 {
		speed = 1
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		log.Printf("gps enabled source=replay path=%s records=%d speed=%v loop=%v", path, len(recs), speed, s.cfg.ReplayLoop)
		err := replay.Play(childCtx, recs, speed, s.cfg.ReplayLoop, nil, func(line string) error {
			s.HandleLine(line)
			return nil
		})
		switch {
		case err == nil:
			log.Printf("gps replay finished path=%s", path)
		case errors.Is(err, context.Canceled):
		default:
			s.setError(fmt.Sprintf("gps replay stopped: %v", err))
		}
	}()
	return nil
}

func (s *Service) startSimLocked(ctx context.Context) error {
	if len(s.cfg.Sim.Satellites) == 0 {
		s.setErrorLocked("gps sim has no satellites")
		return fmt.Errorf("gps sim has no satellites")
	}
	interval := s.cfg.SimInterval
	if interval <= 0 {
		interval = time.Second
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		log.Printf("gps enabled source=sim lat=%.5f lon=%.5f satellites=%d interval=%s",
			s.cfg.Sim.CenterLatDeg, s.cfg.Sim.CenterLonDeg, len(s.cfg.Sim.Satellites), interval)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			for _, line := range s.cfg.Sim.Sentences(s.deps.Now()) {
				s.HandleLine(line)
			}
			select {
			case <-childCtx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return nil
}

// consume feeds r line by line into HandleLine until ctx ends or r fails.
func (s *Service) consume(ctx context.Context, r io.Reader) error {
	reader := bufio.NewScanner(r)
	// NMEA sentences are at most 82 chars; gpsd JSON reports can be longer.
	reader.Buffer(make([]byte, 0, 4096), 256*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !reader.Scan() {
			err := reader.Err()
			if err == nil {
				err = io.EOF
			}
			return err
		}
		s.HandleLine(reader.Text())
	}
}

// HandleLine ingests one raw line and reports whether the fix state changed.
// Non-NMEA chatter is dropped, decode failures are counted and kept as the
// last error.
func (s *Service) HandleLine(raw string) bool {
	line := strings.TrimSpace(raw)
	if line == "" || !strings.HasPrefix(line, "$") {
		return false
	}
	now := s.deps.Now()
	s.record(now, line)

	sent, err := sentence.Decode(line)
	if err != nil {
		s.decodeErrors.Add(1)
		s.deps.Metrics.ObserveDecodeError()
		// Avoid spamming on bad noise; just keep the last error.
		s.setError(err.Error())
		return false
	}
	s.sentences.Add(1)
	s.deps.Metrics.ObserveSentence(sent.Kind.String())

	if err := s.deps.Rebroadcast.SendSentence(line); err != nil {
		s.setError(fmt.Sprintf("gps rebroadcast: %v", err))
	}

	var byNetwork map[string]int
	var interference float64
	changed := s.deps.Bus.Update(func(st *fix.State) bool {
		if !st.Apply(sent, s.deps.Fix) {
			return false
		}
		byNetwork = networkCounts(st.Satellites)
		interference = st.Interference
		return true
	})
	if changed {
		s.deps.Metrics.SetSatellites(byNetwork)
		s.deps.Metrics.SetInterference(interference)
	}

	s.mu.Lock()
	cur := s.Status()
	cur.LastSentenceUTC = now.UTC().Format(time.RFC3339Nano)
	s.last.Store(cur)
	s.mu.Unlock()
	return changed
}

func networkCounts(set satellite.Set) map[string]int {
	out := make(map[string]int, 4)
	for id := range set {
		out[satellite.NetworkName(id.Constellation)]++
	}
	return out
}

func (s *Service) record(now time.Time, line string) {
	s.recMu.Lock()
	var err error
	if s.recorder != nil {
		err = s.recorder.WriteSentence(now, line)
	}
	s.recMu.Unlock()
	if err != nil {
		s.setError(fmt.Sprintf("gps record: %v", err))
	}
}

func (s *Service) closeRecorder() {
	s.recMu.Lock()
	w := s.recorder
	s.recorder = nil
	s.recMu.Unlock()
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		log.Printf("gps record close failed: %v", err)
	}
}

// Wait blocks until the reader goroutine exits, e.g. a non-looping replay
// reaching the end of its log.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
	s.closeRecorder()
}

func (s *Service) Status() Status {
	if s == nil {
		return Status{}
	}
	v := s.last.Load()
	if v == nil {
		return Status{}
	}
	st := v.(Status)
	st.Sentences = s.sentences.Load()
	st.DecodeErrors = s.decodeErrors.Load()
	return st
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

func (s *Service) setErrorLocked(msg string) {
	cur := s.Status()
	cur.LastError = msg
	s.last.Store(cur)
}

func autoDetectDevice() string {
	// Keep it intentionally tiny and predictable.
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"satscope/internal/replay"
	"satscope/internal/sentence"
)

type logSummary struct {
	Sentences  int
	Invalid    int
	Duration   time.Duration
	TypeCounts map[string]int
	// Satellites counts distinct talker/PRN pairs seen in GSV.
	Satellites int
}

func summarizeLog(records []replay.Record) logSummary {
	s := logSummary{TypeCounts: map[string]int{}}
	seen := map[string]struct{}{}

	for _, r := range records {
		s.Sentences++
		if r.At > s.Duration {
			s.Duration = r.At
		}

		sent, err := sentence.Decode(r.Sentence)
		if err != nil {
			s.Invalid++
			continue
		}
		s.TypeCounts[sent.Talker+sent.Type]++
		for _, sat := range sent.Satellites {
			seen[fmt.Sprintf("%s/%d", sent.Talker, sat.PRN)] = struct{}{}
		}
	}
	s.Satellites = len(seen)
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}

	s := summarizeLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "sentences: %d\n", s.Sentences)
	fmt.Fprintf(w, "invalid_sentences: %d\n", s.Invalid)
	fmt.Fprintf(w, "duration: %s\n", s.Duration)
	fmt.Fprintf(w, "satellites: %d\n", s.Satellites)

	keys := make([]string, 0, len(s.TypeCounts))
	for k := range s.TypeCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "type_counts:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, s.TypeCounts[k])
	}
	return nil
}

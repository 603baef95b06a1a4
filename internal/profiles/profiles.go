// Package profiles aggregates the JSON trace profiles Bazel writes with
// --profile into per-event median durations.
package profiles

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/bazelbuild/bazel-bench/internal/stats"
)

// PhaseCategory marks build phase events. Their durations are derived from
// the distance to the next marker.
const PhaseCategory = "build phase marker"

// DefaultFileName is the aggregate CSV written next to the profiles.
const DefaultFileName = "aggr_json_profiles.csv"

type traceEvent struct {
	Cat  string   `json:"cat"`
	Name string   `json:"name"`
	Ts   *float64 `json:"ts"`
	Dur  *float64 `json:"dur"`
}

// Event is one aggregated event. Dur is the median over all profiles, in
// microseconds for regular events and milliseconds for build phases.
type Event struct {
	Cat  string
	Name string
	Dur  float64
}

// readEvents loads the trace events of a profile. Files ending in .gz are
// decompressed. Both a bare event list and {"traceEvents": [...]} are read.
func readEvents(path string) ([]traceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodeEvents(data)
}

func decodeEvents(data []byte) ([]traceEvent, error) {
	data = bytes.TrimSpace(data)
	var events []traceEvent
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("failed to decode trace events: %w", err)
		}
		return events, nil
	}
	var wrapped struct {
		TraceEvents []traceEvent `json:"traceEvents"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode trace profile: %w", err)
	}
	return wrapped.TraceEvents, nil
}

type accumulator struct {
	order []string
	byKey map[string]*accumEntry
}

type accumEntry struct {
	cat    string
	sample *stats.Sample
}

func newAccumulator() *accumulator {
	return &accumulator{byKey: make(map[string]*accumEntry)}
}

func (a *accumulator) add(name, cat string, dur float64) {
	e, ok := a.byKey[name]
	if !ok {
		e = &accumEntry{cat: cat, sample: stats.NewSample()}
		a.byKey[name] = e
		a.order = append(a.order, name)
	}
	e.sample.Add(dur)
}

// accumulate records event durations of one profile. A phase lasts from its
// marker to the next one; the last phase ends at the latest timestamp seen.
func (a *accumulator) accumulate(events []traceEvent) {
	type marker struct {
		name string
		ts   float64
	}
	var markers []marker
	var maxTs float64

	for _, ev := range events {
		if ev.Ts != nil {
			maxTs = max(maxTs, *ev.Ts)
		}
		if ev.Cat == PhaseCategory && ev.Ts != nil {
			markers = append(markers, marker{ev.Name, *ev.Ts})
		}
		if ev.Dur == nil {
			continue
		}
		a.add(ev.Name, ev.Cat, *ev.Dur)
	}

	for i, m := range markers {
		next := maxTs
		if i+1 < len(markers) {
			next = markers[i+1].ts
		}
		a.add(m.name, PhaseCategory, (next-m.ts)/1000)
	}
}

// Aggregate merges the profiles at paths into one median duration per
// event name, in first-seen order. With onlyPhases only build phases are
// returned.
func Aggregate(paths []string, onlyPhases bool) ([]Event, error) {
	acc := newAccumulator()
	for _, p := range paths {
		events, err := readEvents(p)
		if err != nil {
			return nil, err
		}
		acc.accumulate(events)
	}

	out := make([]Event, 0, len(acc.order))
	for _, name := range acc.order {
		e := acc.byKey[name]
		if onlyPhases && e.cat != PhaseCategory {
			continue
		}
		out = append(out, Event{Cat: e.cat, Name: name, Dur: e.sample.Median()})
	}
	return out, nil
}

// Row is one line of the aggregate CSV.
type Row struct {
	BazelSource   string
	ProjectSource string
	ProjectCommit string
	Event
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bazel_source", "project_source", "project_commit", "cat", "name", "dur"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.BazelSource, r.ProjectSource, r.ProjectCommit, r.Cat, r.Name,
			strconv.FormatFloat(r.Dur, 'f', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SessionRows aggregates the build phases of every unit of a session from
// the profiles it left in dir.
func SessionRows(s *benchmark.Session, dir string) ([]Row, error) {
	var rows []Row
	for _, u := range s.Units {
		total := len(u.Runs)
		paths := make([]string, 0, total)
		for i := 1; i <= total; i++ {
			paths = append(paths, benchmark.ProfilePath(dir, s.UID, u.Tool.Identifier(), u.ProjectCommit, i, total))
		}
		events, err := Aggregate(paths, true)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			rows = append(rows, Row{
				BazelSource:   u.Tool.Identifier(),
				ProjectSource: s.ProjectSource,
				ProjectCommit: u.ProjectCommit,
				Event:         ev,
			})
		}
	}
	return rows, nil
}

// WriteSessionCSV aggregates a session's profiles into outPath.
func WriteSessionCSV(s *benchmark.Session, dir, outPath string) error {
	rows, err := SessionRows(s, dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(outPath), err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

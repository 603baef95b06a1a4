package profiles

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func profile(launchTs, execTs, endTs, actionDur string) string {
	return `{"traceEvents":[
		{"cat":"build phase marker","name":"Launch Blaze","ph":"i","ts":` + launchTs + `},
		{"cat":"build phase marker","name":"Execution","ph":"i","ts":` + execTs + `},
		{"cat":"action processing","name":"Compiling a.cc","ph":"X","ts":10,"dur":` + actionDur + `},
		{"cat":"misc","name":"end","ph":"i","ts":` + endTs + `}
	]}`
}

func TestAggregate(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "1.profile.gz")
	p2 := filepath.Join(dir, "2.profile")
	p3 := filepath.Join(dir, "3.profile.gz")
	writeGzip(t, p1, profile("0", "1000", "5000", "100"))
	require.NoError(t, os.WriteFile(p2, []byte(profile("0", "3000", "9000", "300")), 0644))
	writeGzip(t, p3, profile("0", "2000", "4000", "200"))

	events, err := Aggregate([]string{p1, p2, p3}, false)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, Event{Cat: "action processing", Name: "Compiling a.cc", Dur: 200}, events[0])
	// Launch phase lasted 1, 3 and 2 ms.
	assert.Equal(t, Event{Cat: PhaseCategory, Name: "Launch Blaze", Dur: 2}, events[1])
	// Execution lasted until the last timestamp: 4, 6 and 2 ms.
	assert.Equal(t, Event{Cat: PhaseCategory, Name: "Execution", Dur: 4}, events[2])

	phases, err := Aggregate([]string{p1, p2, p3}, true)
	require.NoError(t, err)
	assert.Len(t, phases, 2)
}

func TestAggregate_BareEventList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.profile")
	require.NoError(t, os.WriteFile(path, []byte(`[{"cat":"c","name":"n","ts":0,"dur":7}]`), 0644))

	events, err := Aggregate([]string{path}, false)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Cat: "c", Name: "n", Dur: 7}}, events)
}

func TestAggregate_MissingProfile(t *testing.T) {
	_, err := Aggregate([]string{filepath.Join(t.TempDir(), "nope.profile.gz")}, true)
	assert.Error(t, err)
}

func TestWriteSessionCSV(t *testing.T) {
	dir := t.TempDir()
	s := &benchmark.Session{
		UID:           "20240101000000",
		ProjectSource: "https://example.com/p.git",
		Units: []benchmark.UnitResult{{
			Tool:          benchmark.CommitTool("abc", "/bin/abc"),
			ProjectCommit: "p1",
			Runs:          make([]benchmark.RunRecord, 2),
		}},
	}
	for i := 1; i <= 2; i++ {
		writeGzip(t, benchmark.ProfilePath(dir, s.UID, "abc", "p1", i, 2), profile("0", "1000", "3000", "5"))
	}

	out := filepath.Join(dir, DefaultFileName)
	require.NoError(t, WriteSessionCSV(s, dir, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"bazel_source", "project_source", "project_commit", "cat", "name", "dur"}, rows[0])
	assert.Equal(t, []string{"abc", "https://example.com/p.git", "p1", PhaseCategory, "Launch Blaze", "1"}, rows[1])
	assert.Equal(t, []string{"abc", "https://example.com/p.git", "p1", PhaseCategory, "Execution", "2"}, rows[2])
}

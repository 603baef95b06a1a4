// Package report turns collected run records into per-metric statistics,
// a printable summary and CSV exports.
package report

import (
	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
	"github.com/bazelbuild/bazel-bench/internal/benchmark"
)

// Key identifies one unit's results.
type Key struct {
	Tool    string // tool identifier
	Project string // project commit
}

// Entry is everything recorded for one key.
type Entry struct {
	Key        Key
	Tool       benchmark.Tool
	Invocation bazelargs.InvocationSpec
	Runs       []benchmark.RunRecord
}

// Results is an insertion-ordered collection of entries.
type Results struct {
	entries []Entry
	index   map[Key]int
}

func NewResults() *Results {
	return &Results{index: make(map[Key]int)}
}

// Add records a unit's runs. Adding a key again replaces its entry but
// keeps its original position.
func (r *Results) Add(tool benchmark.Tool, projectCommit string, inv bazelargs.InvocationSpec, runs []benchmark.RunRecord) {
	e := Entry{
		Key:        Key{Tool: tool.Identifier(), Project: projectCommit},
		Tool:       tool,
		Invocation: inv,
		Runs:       runs,
	}
	if i, ok := r.index[e.Key]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.Key] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Entries returns the entries in insertion order.
func (r *Results) Entries() []Entry {
	return r.entries
}

// Len is the number of keys.
func (r *Results) Len() int { return len(r.entries) }

// FromSession rebuilds Results from a saved session.
func FromSession(s *benchmark.Session) *Results {
	r := NewResults()
	for _, u := range s.Units {
		r.Add(u.Tool, u.ProjectCommit, u.Invocation, u.Runs)
	}
	return r
}

package benchmark

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ProfilePath is where the JSON trace profile of run i of total is written.
// Aggregation tooling relies on this exact layout.
func ProfilePath(dir, uid, toolID, project string, i, total int) string {
	name := fmt.Sprintf("%s_%s_%s_%d_of_%d.profile.gz",
		uid, strings.ReplaceAll(toolID, "/", "_"), project, i, total)
	return filepath.Join(dir, name)
}

// ProfileFlags are the options that make Bazel write a compressed JSON
// trace profile to path.
func ProfileFlags(path string) []string {
	return []string{
		"--experimental_generate_json_trace_profile",
		"--experimental_profile_cpu_usage",
		"--experimental_json_trace_compression",
		"--profile=" + path,
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		v := viper.New()
		require.NoError(t, Load(v, ""))

		c, err := FromViper(v, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, c.Runs)
		assert.True(t, c.PrefetchExtDeps)
		assert.Equal(t, DefaultBazelSource, c.BazelSource)
		assert.NotEmpty(t, c.BenchRoot)
	})

	t.Run("From File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bench.yaml")
		content := `
project_source: https://github.com/example/project.git
project_commits: [abc, def]
bazel_binaries: [/usr/bin/bazel]
runs: 5
command: build --nobuild //...
db:
  type: sqlite
  dsn: /tmp/bench.db
units:
  - bazel_binary: /usr/bin/bazel
    command: info
  - bazel_commit: 1234
    runs: 2
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		v := viper.New()
		require.NoError(t, Load(v, path))
		c, err := FromViper(v, nil)
		require.NoError(t, err)

		assert.Equal(t, "https://github.com/example/project.git", c.ProjectSource)
		assert.Equal(t, []string{"abc", "def"}, c.ProjectCommits)
		assert.Equal(t, 5, c.Runs)
		assert.Equal(t, "sqlite", c.DB.Type)
		require.Len(t, c.Units, 2)
		assert.Equal(t, "info", c.Units[0].Command)
		assert.Equal(t, "1234", c.Units[1].BazelCommit)
		assert.Equal(t, 2, c.Units[1].Runs)
	})

	t.Run("Missing Explicit File", func(t *testing.T) {
		v := viper.New()
		assert.Error(t, Load(v, filepath.Join(t.TempDir(), "nope.yaml")))
	})

	t.Run("From Env", func(t *testing.T) {
		t.Setenv("BAZEL_BENCH_PROJECT_SOURCE", "/src/project")
		t.Setenv("BAZEL_BENCH_RUNS", "7")
		t.Setenv("BAZEL_BENCH_DB_TYPE", "postgres")

		v := viper.New()
		require.NoError(t, Load(v, ""))
		c, err := FromViper(v, []string{"build", "//..."})
		require.NoError(t, err)
		assert.Equal(t, "/src/project", c.ProjectSource)
		assert.Equal(t, 7, c.Runs)
		assert.Equal(t, "postgres", c.DB.Type)
		assert.Equal(t, []string{"build", "//..."}, c.Args)
	})
}

func TestConfigPaths(t *testing.T) {
	c := &Config{BenchRoot: "/bb"}
	assert.Equal(t, "/bb/bazel", c.BazelClonePath())
	assert.Equal(t, "/bb/project-clones", c.ProjectCloneRoot())
	assert.Equal(t, "/bb/bazel-bin", c.BinaryDir())
	assert.Equal(t, "/bb/out", c.DataDir())
	assert.False(t, c.ShouldCollectMemory())

	c.BazelBinDir = "/bins"
	c.DataDirectory = "/data"
	assert.Equal(t, "/bins", c.BinaryDir())
	assert.Equal(t, "/data", c.DataDir())
	assert.True(t, c.ShouldCollectMemory())
}

func TestResolvePaths(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	c := &Config{
		BenchRoot:     "/bb",
		DataDirectory: "data",
		BazelBinaries: []string{"bin/bazel", "/usr/bin/bazel"},
		Units:         []UnitConfig{{BazelBinary: "local/bazel"}},
		DB:            DBConfig{Type: "sqlite", DSN: "runs.db"},
	}
	require.NoError(t, c.ResolvePaths())

	assert.Equal(t, "/bb", c.BenchRoot)
	assert.Equal(t, filepath.Join(wd, "data"), c.DataDirectory)
	assert.Equal(t, []string{filepath.Join(wd, "bin/bazel"), "/usr/bin/bazel"}, c.BazelBinaries)
	assert.Equal(t, filepath.Join(wd, "local/bazel"), c.Units[0].BazelBinary)
	assert.Equal(t, filepath.Join(wd, "runs.db"), c.DB.DSN)
	assert.Empty(t, c.Bazelrc)

	pg := &Config{DB: DBConfig{Type: "postgres", DSN: "postgres://x"}}
	require.NoError(t, pg.ResolvePaths())
	assert.Equal(t, "postgres://x", pg.DB.DSN)
}

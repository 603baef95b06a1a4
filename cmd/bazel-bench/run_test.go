package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/bazelbuild/bazel-bench/internal/config"
	"github.com/bazelbuild/bazel-bench/internal/db"
	"github.com/bazelbuild/bazel-bench/internal/git"
	"github.com/bazelbuild/bazel-bench/internal/notify"
)

type fakeRunner struct {
	units  []benchmark.Unit
	failAt int // 1-based unit index that fails, 0 for none
}

func (f *fakeRunner) Run(_ context.Context, u benchmark.Unit) ([]benchmark.RunRecord, bazelargs.InvocationSpec, error) {
	f.units = append(f.units, u)
	if f.failAt == len(f.units) {
		return nil, bazelargs.InvocationSpec{}, errors.New("bazel vanished")
	}
	inv, err := bazelargs.FromCanonical(u.RawArgs)
	if err != nil {
		return nil, inv, err
	}
	runs := make([]benchmark.RunRecord, u.Runs)
	for i := range runs {
		runs[i] = benchmark.RunRecord{Wall: float64(10 + i), CPU: 20, System: 1}
	}
	return runs, inv, nil
}

type recordingNotifier struct{ messages []string }

func (r *recordingNotifier) Notify(_ context.Context, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BazelSource:   "https://example.com/bazel.git",
		ProjectSource: "https://example.com/project.git",
		Runs:          2,
		Command:       "build //:all",
		BenchRoot:     t.TempDir(),
	}
}

func newTestApp(cfg *config.Config, gc git.IClient, runner *fakeRunner) (*app, *bytes.Buffer, *[]string, *recordingNotifier) {
	var out bytes.Buffer
	var built []string
	rec := &recordingNotifier{}
	a := &app{
		cfg:    cfg,
		git:    gc,
		out:    &out,
		logger: quietLogger(),
		now:    func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		newRunner: func(string) unitRunner {
			return runner
		},
		buildBinary: func(_ context.Context, commit string) (string, error) {
			built = append(built, commit)
			return "/bin/" + commit + "/bazel", nil
		},
		openStore: db.NewStore,
		notifier:  notify.NewManagerWith(quietLogger(), rec),
	}
	return a, &out, &built, rec
}

func TestApp_CommitMatrix(t *testing.T) {
	cfg := testConfig(t)
	cfg.BazelCommits = []string{"b2", "b1"}
	cfg.ProjectCommits = []string{"p1"}
	cfg.DataDirectory = filepath.Join(cfg.BenchRoot, "data")
	cfg.DB = config.DBConfig{Type: "sqlite", DSN: filepath.Join(cfg.BenchRoot, "runs.db")}

	projectPath := git.CloneDir(cfg.ProjectCloneRoot(), cfg.ProjectSource)
	gc := &git.MockClient{}
	gc.On("EnsureRepo", mock.Anything, cfg.ProjectSource, projectPath).Return(nil)
	gc.On("SortTopological", mock.Anything, projectPath, []string{"p1"}).Return([]string{"p1"}, nil)
	gc.On("EnsureRepo", mock.Anything, cfg.BazelSource, cfg.BazelClonePath()).Return(nil)
	gc.On("SortTopological", mock.Anything, cfg.BazelClonePath(), []string{"b2", "b1"}).Return([]string{"b1", "b2"}, nil)
	gc.On("Checkout", mock.Anything, projectPath, "p1").Return(nil)

	runner := &fakeRunner{}
	a, out, built, rec := newTestApp(cfg, gc, runner)

	require.NoError(t, a.execute(context.Background()))
	gc.AssertExpectations(t)

	assert.Equal(t, []string{"b1", "b2"}, *built)
	require.Len(t, runner.units, 2)
	assert.Equal(t, "/bin/b1/bazel", runner.units[0].Tool.Path)
	assert.Equal(t, projectPath, runner.units[0].ProjectPath)
	assert.True(t, runner.units[0].CollectMemory, "a data directory turns on memory collection")
	assert.Equal(t, "build", runner.units[0].RawArgs[0])
	assert.Equal(t, "//:all", runner.units[0].RawArgs[len(runner.units[0].RawArgs)-1])

	text := out.String()
	first := strings.Index(text, "Bazel commit: b1")
	second := strings.Index(text, "Bazel commit: b2")
	require.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first)

	assert.FileExists(t, filepath.Join(cfg.DataDirectory, "20240301120000.json"))
	assert.FileExists(t, filepath.Join(cfg.DataDirectory, "20240301120000.csv"))

	store, err := db.NewSQLiteStore(cfg.DB.DSN)
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.QueryRuns(context.Background(), "20240301120000")
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	require.Len(t, rec.messages, 1)
	assert.Contains(t, rec.messages[0], "20240301120000")
}

func TestApp_BinariesOnlySkipBazelClone(t *testing.T) {
	cfg := testConfig(t)
	cfg.BazelBinaries = []string{"/usr/bin/bazel"}

	projectPath := git.CloneDir(cfg.ProjectCloneRoot(), cfg.ProjectSource)
	gc := &git.MockClient{}
	gc.On("EnsureRepo", mock.Anything, cfg.ProjectSource, projectPath).Return(nil)
	gc.On("HeadCommit", mock.Anything, projectPath).Return("p0", nil)
	gc.On("Checkout", mock.Anything, projectPath, "p0").Return(nil)

	runner := &fakeRunner{}
	a, _, built, _ := newTestApp(cfg, gc, runner)

	require.NoError(t, a.execute(context.Background()))
	gc.AssertNotCalled(t, "EnsureRepo", mock.Anything, cfg.BazelSource, mock.Anything)
	assert.Empty(t, *built)
	require.Len(t, runner.units, 1)
	assert.Equal(t, benchmark.BinaryTool("/usr/bin/bazel"), runner.units[0].Tool)
	assert.Equal(t, "p0", runner.units[0].ProjectCommit)
}

func TestApp_DefaultsToBazelHead(t *testing.T) {
	cfg := testConfig(t)

	projectPath := git.CloneDir(cfg.ProjectCloneRoot(), cfg.ProjectSource)
	gc := &git.MockClient{}
	gc.On("EnsureRepo", mock.Anything, cfg.ProjectSource, projectPath).Return(nil)
	gc.On("HeadCommit", mock.Anything, projectPath).Return("p0", nil)
	gc.On("EnsureRepo", mock.Anything, cfg.BazelSource, cfg.BazelClonePath()).Return(nil)
	gc.On("HeadCommit", mock.Anything, cfg.BazelClonePath()).Return("h1", nil)
	gc.On("Checkout", mock.Anything, projectPath, "p0").Return(nil)

	runner := &fakeRunner{}
	a, _, built, _ := newTestApp(cfg, gc, runner)

	require.NoError(t, a.execute(context.Background()))
	assert.Equal(t, []string{"h1"}, *built)
}

func TestApp_UnitFailureReportsFinishedUnits(t *testing.T) {
	cfg := testConfig(t)
	cfg.BazelBinaries = []string{"/a/bazel", "/b/bazel"}
	cfg.ProjectCommits = []string{"p1"}

	projectPath := git.CloneDir(cfg.ProjectCloneRoot(), cfg.ProjectSource)
	gc := &git.MockClient{}
	gc.On("EnsureRepo", mock.Anything, cfg.ProjectSource, projectPath).Return(nil)
	gc.On("SortTopological", mock.Anything, projectPath, []string{"p1"}).Return([]string{"p1"}, nil)
	gc.On("Checkout", mock.Anything, projectPath, "p1").Return(nil)

	runner := &fakeRunner{failAt: 2}
	a, out, _, _ := newTestApp(cfg, gc, runner)

	err := a.execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bazel vanished")
	assert.Contains(t, out.String(), "Bazel commit: /a/bazel")
	assert.NotContains(t, out.String(), "Bazel commit: /b/bazel")
}

func TestApp_ProjectRepoFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	gc := &git.MockClient{}
	gc.On("EnsureRepo", mock.Anything, cfg.ProjectSource, mock.Anything).Return(errors.New("no network"))

	runner := &fakeRunner{}
	a, out, _, _ := newTestApp(cfg, gc, runner)

	err := a.execute(context.Background())
	assert.ErrorContains(t, err, "failed to prepare project repository")
	assert.Empty(t, runner.units)
	assert.Empty(t, out.String())
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	_, err := loadSession(dir, "", nil)
	assert.ErrorContains(t, err, "no saved session")

	store, err := benchmark.NewFileStore(dir)
	require.NoError(t, err)
	s := benchmark.Session{UID: "20240301120000", StartedAt: time.Now(), ProjectSource: "src"}
	require.NoError(t, store.Save(s))

	got, err := loadSession(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, s.UID, got.UID)

	got, err = loadSession(t.TempDir(), "", []string{store.Path(s.UID)})
	require.NoError(t, err)
	assert.Equal(t, "src", got.ProjectSource)

	_, err = loadSession(dir, "missing", nil)
	assert.Error(t, err)
}

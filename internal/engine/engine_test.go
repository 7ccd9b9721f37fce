package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdgeApp/libforge/internal/engine"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage"
	"github.com/EdgeApp/libforge/internal/storage/memory"
)

// recorder keeps the order in which task bodies ran.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, ev := range r.all() {
		if ev == name {
			n++
		}
	}
	return n
}

// assertBefore checks that task a ran before task b.
func assertBefore(t *testing.T, events []string, a, b string) {
	t.Helper()
	ia, ib := -1, -1
	for i, ev := range events {
		if ev == a && ia < 0 {
			ia = i
		}
		if ev == b && ib < 0 {
			ib = i
		}
	}
	require.GreaterOrEqual(t, ia, 0, "task %q never ran", a)
	require.GreaterOrEqual(t, ib, 0, "task %q never ran", b)
	assert.Less(t, ia, ib, "task %q should have run before %q: %v", a, b, events)
}

type fakeExecutor struct {
	mu   sync.Mutex
	reqs []model.ExecRequest
}

func (f *fakeExecutor) Exec(ctx context.Context, sink io.Writer, req model.ExecRequest) (*model.ExecResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	fmt.Fprintf(sink, "$ %s\n", req.Command)
	return &model.ExecResult{ExitCode: 0}, nil
}

func (f *fakeExecutor) requests() []model.ExecRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ExecRequest{}, f.reqs...)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type memSinks struct {
	mu   sync.Mutex
	bufs map[string]*bytes.Buffer
}

func newMemSinks() *memSinks { return &memSinks{bufs: map[string]*bytes.Buffer{}} }

func (s *memSinks) OpenTaskLog(taskName string) (io.WriteCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &bytes.Buffer{}
	s.bufs[taskName] = b
	return nopWriteCloser{b}, "logs/" + taskName + ".log", nil
}

func recordedTask(rec *recorder, name, cacheTag string, deps ...string) model.Task {
	return model.Task{
		Name:         name,
		CacheTag:     cacheTag,
		Dependencies: deps,
		Run: func(ctx context.Context, bc model.BuildContext) error {
			rec.add(name)
			return nil
		},
	}
}

func newTestEngine(t *testing.T, reg *registry.Registry, status storage.StatusRepository, exec engine.ProcessExecutor) *engine.Engine {
	t.Helper()

	if status == nil {
		var err error
		status, err = memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)
	}
	if exec == nil {
		exec = &fakeExecutor{}
	}

	eng, err := engine.NewEngine(engine.EngineConfig{
		Registry: reg,
		Status:   status,
		Executor: exec,
		LogSinks: newMemSinks(),
		BasePath: "/build",
		BaseEnv:  map[string]string{"PATH": "/usr/bin"},
	})
	require.NoError(t, err)
	return eng
}

func TestEngineBuildOrdering(t *testing.T) {
	t.Run("A dependency chain should run leaf first, root last.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "openssl", "", "zlib")))
		require.NoError(t, reg.Register(recordedTask(rec, "zlib", "", "toolchain")))
		require.NoError(t, reg.Register(recordedTask(rec, "toolchain", "")))

		eng := newTestEngine(t, reg, nil, nil)
		res, err := eng.Build(context.Background(), "openssl")

		require.NoError(t, err)
		assert.False(t, res.Clean)
		events := rec.all()
		assertBefore(t, events, "toolchain", "zlib")
		assertBefore(t, events, "zlib", "openssl")
	})

	t.Run("A diamond should run the shared dependency exactly once.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "wallet", "", "openssl", "libsodium")))
		require.NoError(t, reg.Register(recordedTask(rec, "openssl", "", "toolchain")))
		require.NoError(t, reg.Register(recordedTask(rec, "libsodium", "", "toolchain")))
		require.NoError(t, reg.Register(recordedTask(rec, "toolchain", "")))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "wallet")

		require.NoError(t, err)
		events := rec.all()
		assert.Equal(t, 1, rec.count("toolchain"))
		assertBefore(t, events, "toolchain", "openssl")
		assertBefore(t, events, "toolchain", "libsodium")
		assertBefore(t, events, "openssl", "wallet")
		assertBefore(t, events, "libsodium", "wallet")
	})
}

func TestEngineBuildGraphErrors(t *testing.T) {
	t.Run("An unknown root task should fail without executing anything.", func(t *testing.T) {
		rec := &recorder{}
		eng := newTestEngine(t, registry.New(), nil, nil)

		_, err := eng.Build(context.Background(), "missing")

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrNotFound))
		assert.Empty(t, rec.all())
	})

	t.Run("An unknown declared dependency should fail without executing anything.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "openssl", "", "missing")))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "openssl")

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrNotFound))
		assert.Empty(t, rec.all())
	})

	t.Run("A declared cycle should fail with the full cycle path.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "a", "", "b")))
		require.NoError(t, reg.Register(recordedTask(rec, "b", "", "c")))
		require.NoError(t, reg.Register(recordedTask(rec, "c", "", "a")))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "a")

		require.Error(t, err)
		var cycleErr *model.CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "b", "c", "a"}, cycleErr.Path)
		assert.Contains(t, err.Error(), "a -> b -> c -> a")
		assert.Empty(t, rec.all())
	})

	t.Run("A self-dependency should fail as a cycle.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "a", "", "a")))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "a")

		require.Error(t, err)
		var cycleErr *model.CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "a"}, cycleErr.Path)
	})
}

func TestEngineBuildCaching(t *testing.T) {
	newCacheableRegistry := func(rec *recorder) *registry.Registry {
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "openssl", "3.0.14", "zlib")))
		require.NoError(t, reg.Register(recordedTask(rec, "zlib", "1.3.1")))
		return reg
	}

	t.Run("A second run over a fully cached tree should execute nothing.", func(t *testing.T) {
		rec := &recorder{}
		status, err := memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)
		eng := newTestEngine(t, newCacheableRegistry(rec), status, nil)

		res, err := eng.Build(context.Background(), "openssl")
		require.NoError(t, err)
		assert.False(t, res.Clean)
		assert.Len(t, rec.all(), 2)

		res, err = eng.Build(context.Background(), "openssl")
		require.NoError(t, err)
		assert.True(t, res.Clean)
		assert.Len(t, rec.all(), 2, "a clean tree must not execute any task body")
	})

	t.Run("A changed dependency tag should invalidate all its dependents.", func(t *testing.T) {
		rec := &recorder{}
		status, err := memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)

		eng := newTestEngine(t, newCacheableRegistry(rec), status, nil)
		_, err = eng.Build(context.Background(), "openssl")
		require.NoError(t, err)

		// New registry with a bumped zlib version: the openssl record still
		// matches its own tag but the dirty dependency forces a rebuild.
		rec2 := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec2, "openssl", "3.0.14", "zlib")))
		require.NoError(t, reg.Register(recordedTask(rec2, "zlib", "1.3.2")))

		eng = newTestEngine(t, reg, status, nil)
		res, err := eng.Build(context.Background(), "openssl")

		require.NoError(t, err)
		assert.False(t, res.Clean)
		assert.Equal(t, 1, rec2.count("zlib"))
		assert.Equal(t, 1, rec2.count("openssl"))
	})

	t.Run("An uncacheable task should always run and dirty its dependents.", func(t *testing.T) {
		rec := &recorder{}
		status, err := memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)

		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "package", "v1", "checkout")))
		require.NoError(t, reg.Register(recordedTask(rec, "checkout", "")))

		eng := newTestEngine(t, reg, status, nil)
		_, err = eng.Build(context.Background(), "package")
		require.NoError(t, err)
		_, err = eng.Build(context.Background(), "package")
		require.NoError(t, err)

		assert.Equal(t, 2, rec.count("checkout"))
		assert.Equal(t, 2, rec.count("package"))
	})

	t.Run("A recorded failure should not satisfy the cache.", func(t *testing.T) {
		status, err := memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)

		fails := true
		var runs int
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name:     "zlib",
			CacheTag: "1.3.1",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				runs++
				if fails {
					return errors.New("make failed")
				}
				return nil
			},
		}))

		eng := newTestEngine(t, reg, status, nil)
		_, err = eng.Build(context.Background(), "zlib")
		require.Error(t, err)

		record, err := status.LoadStatus(context.Background(), "zlib")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.False(t, record.Success)

		fails = false
		res, err := eng.Build(context.Background(), "zlib")
		require.NoError(t, err)
		assert.False(t, res.Clean)
		assert.Equal(t, 2, runs)
	})
}

func TestEngineBuildFailures(t *testing.T) {
	t.Run("A task failure should propagate to its dependents and name the task.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "wallet", "", "openssl")))
		require.NoError(t, reg.Register(model.Task{
			Name: "openssl",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				return errors.New("configure failed")
			},
		}))

		eng := newTestEngine(t, reg, nil, nil)
		res, err := eng.Build(context.Background(), "wallet")

		require.Error(t, err)
		assert.Contains(t, err.Error(), `task "openssl"`)
		assert.Equal(t, "openssl", res.FailedTask)
		assert.Equal(t, "logs/openssl.log", res.FailedLogPath)
		assert.Equal(t, 0, rec.count("wallet"), "a dependent must not run after its dependency failed")
	})

	t.Run("A failing subtree should not stop an independent sibling subtree.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(recordedTask(rec, "wallet", "", "broken", "libsodium")))
		require.NoError(t, reg.Register(model.Task{
			Name: "broken",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				return errors.New("boom")
			},
		}))
		require.NoError(t, reg.Register(recordedTask(rec, "libsodium", "", "toolchain")))
		require.NoError(t, reg.Register(recordedTask(rec, "toolchain", "")))

		eng := newTestEngine(t, reg, nil, nil)
		res, err := eng.Build(context.Background(), "wallet")

		require.Error(t, err)
		assert.Equal(t, "broken", res.FailedTask)
		assert.Equal(t, 1, rec.count("toolchain"))
		assert.Equal(t, 1, rec.count("libsodium"))
		assert.Equal(t, 0, rec.count("wallet"))
	})
}

func TestEngineBuildDynamicDependencies(t *testing.T) {
	t.Run("A dynamically required task should run once and before its requester finishes.", func(t *testing.T) {
		rec := &recorder{}
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name: "wallet",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				if err := bc.Requires(ctx, "zlib"); err != nil {
					return err
				}
				if err := bc.Requires(ctx, "zlib"); err != nil {
					return err
				}
				rec.add("wallet")
				return nil
			},
		}))
		require.NoError(t, reg.Register(recordedTask(rec, "zlib", "")))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "wallet")

		require.NoError(t, err)
		assert.Equal(t, 1, rec.count("zlib"))
		assertBefore(t, rec.all(), "zlib", "wallet")
	})

	t.Run("A dynamic self-requirement should fail as a cycle.", func(t *testing.T) {
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name: "wallet",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				return bc.Requires(ctx, "wallet")
			},
		}))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "wallet")

		require.Error(t, err)
		var cycleErr *model.CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"wallet", "wallet"}, cycleErr.Path)
	})

	t.Run("A dynamic requirement of an ancestor should fail as a cycle.", func(t *testing.T) {
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name:         "wallet",
			Dependencies: []string{"openssl"},
			Run:          func(ctx context.Context, bc model.BuildContext) error { return nil },
		}))
		require.NoError(t, reg.Register(model.Task{
			Name: "openssl",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				return bc.Requires(ctx, "wallet")
			},
		}))

		eng := newTestEngine(t, reg, nil, nil)
		_, err := eng.Build(context.Background(), "wallet")

		require.Error(t, err)
		var cycleErr *model.CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"wallet", "openssl", "wallet"}, cycleErr.Path)
	})
}

func TestEngineBuildContext(t *testing.T) {
	t.Run("Exec should default to the context workdir and environment.", func(t *testing.T) {
		exec := &fakeExecutor{}
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name: "zlib",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				bc.Cd("zlib-1.3.1")
				bc.Setenv("CFLAGS", "-O2")
				_, err := bc.Exec(ctx, model.ExecRequest{Command: "make"})
				return err
			},
		}))

		eng := newTestEngine(t, reg, nil, exec)
		_, err := eng.Build(context.Background(), "zlib")
		require.NoError(t, err)

		reqs := exec.requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "make", reqs[0].Command)
		assert.Equal(t, "/build/zlib-1.3.1", reqs[0].Dir)
		assert.Equal(t, "-O2", reqs[0].Env["CFLAGS"])
		assert.Equal(t, "/usr/bin", reqs[0].Env["PATH"])
	})

	t.Run("Environment and workdir changes should stay local to each task.", func(t *testing.T) {
		exec := &fakeExecutor{}
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name:         "openssl",
			Dependencies: []string{"zlib"},
			Run: func(ctx context.Context, bc model.BuildContext) error {
				_, err := bc.Exec(ctx, model.ExecRequest{Command: "configure"})
				return err
			},
		}))
		require.NoError(t, reg.Register(model.Task{
			Name: "zlib",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				bc.Cd("zlib-1.3.1")
				bc.Setenv("CFLAGS", "-O2")
				return nil
			},
		}))

		eng := newTestEngine(t, reg, nil, exec)
		_, err := eng.Build(context.Background(), "openssl")
		require.NoError(t, err)

		reqs := exec.requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/build", reqs[0].Dir)
		assert.NotContains(t, reqs[0].Env, "CFLAGS")
	})

	t.Run("Absolute Cd should replace the workdir.", func(t *testing.T) {
		exec := &fakeExecutor{}
		reg := registry.New()
		require.NoError(t, reg.Register(model.Task{
			Name: "zlib",
			Run: func(ctx context.Context, bc model.BuildContext) error {
				bc.Cd("/tmp/elsewhere")
				_, err := bc.Exec(ctx, model.ExecRequest{Command: "make"})
				return err
			},
		}))

		eng := newTestEngine(t, reg, nil, exec)
		_, err := eng.Build(context.Background(), "zlib")
		require.NoError(t, err)

		reqs := exec.requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/tmp/elsewhere", reqs[0].Dir)
	})
}

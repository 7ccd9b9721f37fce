package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	appbuild "github.com/EdgeApp/libforge/internal/app/build"
	"github.com/EdgeApp/libforge/internal/conventions"
	"github.com/EdgeApp/libforge/internal/engine"
	"github.com/EdgeApp/libforge/internal/executor"
	"github.com/EdgeApp/libforge/internal/limiter"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/recipes"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage"
	"github.com/EdgeApp/libforge/internal/storage/fsjson"
	storageio "github.com/EdgeApp/libforge/internal/storage/io"
	"github.com/EdgeApp/libforge/internal/storage/sqlite"
	"github.com/EdgeApp/libforge/internal/utils/env"
)

// timeRound is the resolution for user-facing durations.
const timeRound = time.Second

type BuildCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	task      string
	maxProcs  int
	envSpecs  []string
	noHistory bool
}

// NewBuildCommand returns the build command.
func NewBuildCommand(rootCmd *RootCommand, app *kingpin.Application) *BuildCommand {
	c := &BuildCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("build", "Build a task and its dependency tree.")
	c.Cmd.Arg("task", "Root task to build (defaults to the conventional default task).").StringVar(&c.task)
	c.Cmd.Flag("max-procs", "Maximum number of concurrently running external processes (defaults to the CPU count).").Short('j').IntVar(&c.maxProcs)
	c.Cmd.Flag("env", "Environment variables injected into every task (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("no-history", "Disable build run journaling.").BoolVar(&c.noHistory)

	return c
}

func (c BuildCommand) Name() string { return c.Cmd.FullCommand() }

func (c BuildCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cliEnv, err := parseEnvSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	// Optional project configuration file.
	projectCfg := loadProjectConfig(ctx, c.rootCmd)

	basePath, err := resolveBasePath(c.rootCmd.BasePath, projectCfg)
	if err != nil {
		return fmt.Errorf("could not resolve base path: %w", err)
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("could not create base path: %w", err)
	}

	maxProcs := c.maxProcs
	if maxProcs == 0 {
		maxProcs = projectCfg.MaxProcs
	}

	rootTask := c.task
	if rootTask == "" {
		rootTask = projectCfg.DefaultTask
	}
	if rootTask == "" {
		rootTask = conventions.DefaultRootTask
	}

	// Task registry with the built-in recipe catalog.
	reg := registry.New()
	if err := recipes.Register(reg); err != nil {
		return fmt.Errorf("could not set up task registry: %w", err)
	}

	// Process executor gated by the rate limiter.
	exe, err := executor.NewExecutor(executor.ExecutorConfig{
		Limiter: limiter.New(maxProcs),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	// Status store under the build base path.
	status, err := fsjson.NewStatusRepository(fsjson.StatusRepositoryConfig{
		StatusDir: conventions.StatusDirPath(basePath),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create status repository: %w", err)
	}

	// Build run history journal. An unavailable journal downgrades to a
	// warning, it never blocks a build.
	var runs storage.RunRepository
	if !c.noHistory {
		runRepo, err := sqlite.NewRunRepository(ctx, sqlite.RunRepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			logger.Warningf("Build history unavailable: %s", err)
		} else {
			defer runRepo.Close()
			runs = runRepo
		}
	}

	baseEnv := env.MergeMaps(env.FromList(os.Environ()), projectCfg.Env)
	baseEnv = env.MergeMaps(baseEnv, cliEnv)

	eng, err := engine.NewEngine(engine.EngineConfig{
		Registry: reg,
		Status:   status,
		Executor: exe,
		LogSinks: engine.FileLogSinks{BasePath: basePath},
		BasePath: basePath,
		BaseEnv:  baseEnv,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	svc, err := appbuild.NewService(appbuild.ServiceConfig{
		Engine: eng,
		Runs:   runs,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, appbuild.Request{RootTask: rootTask})
	if err != nil {
		if res != nil && res.FailedTask != "" {
			return fmt.Errorf("task %q failed, see %s: %w", res.FailedTask, res.FailedLogPath, err)
		}
		return err
	}

	if res.Clean {
		fmt.Fprintf(c.rootCmd.Stdout, "Task %q is up to date (%s)\n", rootTask, res.Duration.Round(timeRound))
	} else {
		fmt.Fprintf(c.rootCmd.Stdout, "Task %q built successfully (%s)\n", rootTask, res.Duration.Round(timeRound))
	}

	return nil
}

// loadProjectConfig loads the optional per-project YAML configuration from the
// current directory. A missing file is not an error; a broken one is only a
// warning since every setting has a flag equivalent.
func loadProjectConfig(ctx context.Context, rootCmd *RootCommand) model.ProjectConfig {
	repo := storageio.NewConfigYAMLRepository(os.DirFS("."))

	cfg, err := repo.GetConfig(ctx, conventions.ProjectConfigFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			rootCmd.Logger.Warningf("Ignoring project config: %s", err)
		}
		return model.ProjectConfig{}
	}

	return cfg
}

func resolveBasePath(flagValue string, cfg model.ProjectConfig) (string, error) {
	base := flagValue
	if base == "" {
		base = cfg.BasePath
	}
	if base == "" {
		base = "build"
	}
	return filepath.Abs(base)
}

package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	appclean "github.com/EdgeApp/libforge/internal/app/clean"
	"github.com/EdgeApp/libforge/internal/conventions"
	"github.com/EdgeApp/libforge/internal/recipes"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage/fsjson"
)

type CleanCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	tasks []string
}

// NewCleanCommand returns the clean command.
func NewCleanCommand(rootCmd *RootCommand, app *kingpin.Application) *CleanCommand {
	c := &CleanCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("clean", "Forget cached task statuses so the next build re-runs them.")
	c.Cmd.Arg("tasks", "Tasks to clean (defaults to every task).").StringsVar(&c.tasks)

	return c
}

func (c CleanCommand) Name() string { return c.Cmd.FullCommand() }

func (c CleanCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	basePath, err := resolveBasePath(c.rootCmd.BasePath, loadProjectConfig(ctx, c.rootCmd))
	if err != nil {
		return fmt.Errorf("could not resolve base path: %w", err)
	}

	reg := registry.New()
	if err := recipes.Register(reg); err != nil {
		return fmt.Errorf("could not set up task registry: %w", err)
	}

	status, err := fsjson.NewStatusRepository(fsjson.StatusRepositoryConfig{
		StatusDir: conventions.StatusDirPath(basePath),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create status repository: %w", err)
	}

	svc, err := appclean.NewService(appclean.ServiceConfig{
		Registry: reg,
		Status:   status,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Run(ctx, appclean.Request{Tasks: c.tasks}); err != nil {
		return fmt.Errorf("could not clean: %w", err)
	}

	fmt.Fprintln(c.rootCmd.Stdout, "Cleaned")
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	apptasks "github.com/EdgeApp/libforge/internal/app/tasks"
	"github.com/EdgeApp/libforge/internal/conventions"
	"github.com/EdgeApp/libforge/internal/printer"
	"github.com/EdgeApp/libforge/internal/recipes"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage/fsjson"
)

type TasksCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewTasksCommand returns the tasks command.
func NewTasksCommand(rootCmd *RootCommand, app *kingpin.Application) *TasksCommand {
	c := &TasksCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("tasks", "List registered build tasks and their cache state.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c TasksCommand) Name() string { return c.Cmd.FullCommand() }

func (c TasksCommand) Run(ctx context.Context) error {
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

	svc, err := apptasks.NewService(apptasks.ServiceConfig{
		Registry: reg,
		Status:   status,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	infos, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	return p.PrintTaskList(infos)
}

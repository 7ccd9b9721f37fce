package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	apphistory "github.com/EdgeApp/libforge/internal/app/history"
	"github.com/EdgeApp/libforge/internal/printer"
	"github.com/EdgeApp/libforge/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List past build runs.")
	c.Cmd.Flag("limit", "Maximum number of runs to show.").Short('n').Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	runs, err := sqlite.NewRunRepository(ctx, sqlite.RunRepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open build history: %w", err)
	}
	defer runs.Close()

	svc, err := apphistory.NewService(apphistory.ServiceConfig{
		Runs:   runs,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	list, err := svc.List(ctx, apphistory.Request{Limit: c.limit})
	if err != nil {
		return fmt.Errorf("could not list build runs: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	return p.PrintRunList(list)
}

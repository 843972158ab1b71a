package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"forgecore/internal/config"
	"forgecore/internal/engine"
	"forgecore/internal/route"
)

var (
	routeConfigPath string
	routeRoot       string
)

// newRouteCmd builds the diagnostic "route" command: it runs the
// addon pipeline with both listeners forced off so nothing actually
// binds a port, then prints every endpoint the run ended up with.
func newRouteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "route",
		Short: "Inspect the routes an addon set would register",
	}
	c.PersistentFlags().StringVar(&routeConfigPath, "config", "config.yaml", "path to the engine configuration file")
	c.PersistentFlags().StringVar(&routeRoot, "root", ".", "root directory holding addons/, libraries/ and logs/")
	c.AddCommand(newRouteListCmd())
	return c
}

func newRouteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every HTTP and WebSocket route currently registered",
		Args:  cobra.NoArgs,
		RunE:  runRouteList,
	}
}

func runRouteList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(routeConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.HTTPMode = config.ModeDisabled
	cfg.WSMode = config.ModeDisabled

	eng := engine.New(cfg, routeRoot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("running addon pipeline: %w", err)
	}
	defer eng.Stop(context.Background())

	snap := eng.Routes.Snapshot()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("KIND"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("PATTERN"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("PRIORITY"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("HANDLER"),
	})
	for _, r := range snap {
		kind := "HTTP"
		if r.Kind == route.SocketEndpoint {
			kind = "WS"
		}
		t.AppendRow(table.Row{kind, r.Pattern, r.Priority.String(), r.Handler})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d\n", len(snap))
	return nil
}

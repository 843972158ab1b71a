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
)

var (
	addonConfigPath string
	addonRoot       string
)

// newAddonCmd builds the "addon" command group, whose only subcommand is
// "list". There is no wire protocol to an already-running engine
// process, so each invocation runs its own engine instance through the
// whole addon pipeline (discover through enable), reports the outcome,
// then tears it back down. This makes the command a diagnostic tool
// rather than a remote control for a long-lived server.
func newAddonCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "addon",
		Short: "Run the addon pipeline and report on discovered addons",
	}
	c.PersistentFlags().StringVar(&addonConfigPath, "config", "config.yaml", "path to the engine configuration file")
	c.PersistentFlags().StringVar(&addonRoot, "root", ".", "root directory holding addons/, libraries/ and logs/")
	c.AddCommand(newAddonListCmd())
	return c
}

func newAddonListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Discover, resolve, load and enable every addon, then report final state",
		Args:  cobra.NoArgs,
		RunE:  runAddonList,
	}
}

func runAddonList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(addonConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.HTTPMode = config.ModeDisabled
	cfg.WSMode = config.ModeDisabled

	eng := engine.New(cfg, addonRoot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("running addon pipeline: %w", err)
	}
	defer eng.Stop(context.Background())

	records := eng.Addons.Records()
	order := eng.Addons.Order()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("NAME"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("STATE"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("DEPENDS"),
	})
	for _, key := range order {
		r, ok := records[key]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			r.Manifest.Name,
			r.CurrentState().String(),
			fmt.Sprintf("%v", r.Manifest.Depends),
		})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d\n", len(order))
	return nil
}

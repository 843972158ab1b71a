package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"forgecore/internal/config"
	"forgecore/internal/engine"
	"forgecore/internal/route"
	"forgecore/pkg/logging"
)

var (
	serveConfigPath string
	serveRoot       string
	serveHTTPPort   int
	serveWSPort     int
	serveDebug      bool
	serveQuiet      bool
)

// newServeCmd builds the command that brings the engine up and keeps it
// running until interrupted.
func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WebSocket engine and its addon pipeline",
		Long: `Starts the route dispatcher, the HTTP and WebSocket listeners, and —
unless disabled in configuration — discovers, resolves, instantiates,
loads and enables every addon archive found under <root>/addons.

The engine keeps running until interrupted (Ctrl-C) or until "stop" is
typed at the console prompt, at which point every addon is disabled in
reverse load order before the listeners are stopped.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	c.Flags().StringVar(&serveConfigPath, "config", "config.yaml", "path to the engine configuration file")
	c.Flags().StringVar(&serveRoot, "root", ".", "root directory holding addons/, libraries/ and logs/")
	c.Flags().IntVar(&serveHTTPPort, "http-port", 0, "override the configured HTTP port (0 = use config)")
	c.Flags().IntVar(&serveWSPort, "ws-port", 0, "override the configured WebSocket port (0 = use config)")
	c.Flags().BoolVar(&serveDebug, "debug", false, "enable debug-level logging")
	c.Flags().BoolVar(&serveQuiet, "quiet", false, "suppress the startup spinner and console prompt even on a TTY")
	return c
}

func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if serveHTTPPort != 0 {
		cfg.HTTPPort = serveHTTPPort
		cfg.HTTPMode = config.ModeEnabled
	}
	if serveWSPort != 0 {
		cfg.WSPort = serveWSPort
		cfg.WSMode = config.ModeEnabled
	}

	eng := engine.New(cfg, serveRoot)

	interactive := !serveQuiet && isatty.IsTerminal(os.Stdout.Fd())

	var sp *spinner.Spinner
	if interactive {
		sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		sp.Suffix = " Starting engine..."
		sp.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErr := eng.Start(ctx)
	if sp != nil {
		sp.Stop()
	}
	if startErr != nil {
		return fmt.Errorf("starting engine: %w", startErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "forgecore is running (http:%d ws:%d)\n", cfg.HTTPPort, cfg.WSPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	quit := make(chan struct{})
	if interactive {
		go runConsole(eng, cmd.OutOrStdout(), quit)
	}

	select {
	case <-sig:
	case <-quit:
	}

	fmt.Fprintln(cmd.OutOrStdout(), "shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	eng.Stop(stopCtx)
	return nil
}

// runConsole is the single reader goroutine for the interactive
// console: it owns the one chzyer/readline instance for the process
// and dispatches each line to a small built-in command set. Typing
// "stop", or closing the input stream (Ctrl-D), closes quit to trigger
// the same orderly shutdown a signal would.
func runConsole(eng *engine.Engine, out io.Writer, quit chan struct{}) {
	rl, err := readline.New("forgecore> ")
	if err != nil {
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			close(quit)
			return
		}
		switch line {
		case "":
			continue
		case "stop":
			close(quit)
			return
		case "help":
			fmt.Fprintln(out, "commands: help, addons, routes, stop")
		case "addons":
			printAddonTable(out, eng)
		case "routes":
			printRouteTable(out, eng)
		default:
			fmt.Fprintf(out, "unrecognized console command %q (try \"help\")\n", line)
		}
	}
}

func printAddonTable(out io.Writer, eng *engine.Engine) {
	order := eng.Addons.Order()
	records := eng.Addons.Records()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "STATE"})
	for _, key := range order {
		if r, ok := records[key]; ok {
			t.AppendRow(table.Row{r.Manifest.Name, r.CurrentState().String()})
		}
	}
	t.Render()
}

func printRouteTable(out io.Writer, eng *engine.Engine) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"KIND", "PATTERN", "PRIORITY", "HANDLER"})
	for _, r := range eng.Routes.Snapshot() {
		kind := "HTTP"
		if r.Kind == route.SocketEndpoint {
			kind = "WS"
		}
		t.AppendRow(table.Row{kind, r.Pattern, r.Priority.String(), r.Handler})
	}
	t.Render()
}

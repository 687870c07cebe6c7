// Command site2ts is the control plane for the crawl-to-app pipeline.
// `site2ts serve` speaks line-delimited JSON-RPC on stdin/stdout and
// drives the Node worker subprocess; `site2ts watch` is a terminal
// dashboard over the stage-run history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/site2ts/internal/api"
	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/config"
	"github.com/mattjoyce/site2ts/internal/history"
	"github.com/mattjoyce/site2ts/internal/joblog"
	"github.com/mattjoyce/site2ts/internal/layout"
	"github.com/mattjoyce/site2ts/internal/log"
	"github.com/mattjoyce/site2ts/internal/rpc"
	"github.com/mattjoyce/site2ts/internal/stage"
	"github.com/mattjoyce/site2ts/internal/tui/watch"
	"github.com/mattjoyce/site2ts/internal/worker"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("site2ts version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`site2ts - crawl a website, generate a TypeScript app

Usage:
  site2ts <command> [flags]

Commands:
  serve     Run the JSON-RPC control plane on stdin/stdout
  watch     Live dashboard over the stage-run history
  version   Show version information
  help      Show this help message

Serve Flags:
  --config PATH      Configuration file (default: site2ts.yaml if present)
  --root DIR         Project state directory (default: .site2ts)
  --worker CMD       Worker command line, space-separated
  --listen ADDR      Enable the read-only inspection API on ADDR
  --log-level LEVEL  DEBUG|INFO|WARN|ERROR (default: INFO)

Watch Flags:
  --config PATH      Configuration file
  --root DIR         Project state directory
`)
}

// serveOptions are the effective serve settings after flags are laid
// over the config file.
type serveOptions struct {
	cfg *config.Config
}

func parseServeFlags(args []string) (*serveOptions, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	root := fs.String("root", "", "project state directory")
	workerCmd := fs.String("worker", "", "worker command line")
	listen := fs.String("listen", "", "inspection api listen address")
	logLevel := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *workerCmd != "" {
		cfg.Worker.Command = strings.Fields(*workerCmd)
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	return &serveOptions{cfg: cfg}, nil
}

func runServe(args []string) int {
	opts, err := parseServeFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	cfg := opts.cfg

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("main")

	l, err := layout.New(cfg.Root)
	if err != nil {
		logger.Error("invalid project root", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := history.OpenSQLite(ctx, l.HistoryDB())
	if err != nil {
		logger.Error("failed to open history index", "error", err)
		return 1
	}
	defer db.Close()
	hist := history.NewStore(db)

	store := artifact.NewStore(l)
	out := rpc.NewLineWriter(os.Stdout)
	supervisor := worker.New(cfg.Worker.Command, out)
	defer supervisor.Close()

	registry := stage.NewRegistry(supervisor, store, l, joblog.NewAppender(l), hist)
	server := rpc.NewServer(os.Stdin, out, registry.Handlers())

	if cfg.API.Listen != "" {
		apiServer := api.New(cfg.API.Listen, hist, store)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("inspection api failed", "error", err)
			}
		}()
	}

	logger.Info("serving", "root", cfg.Root, "worker", strings.Join(cfg.Worker.Command, " "))
	if err := server.Run(); err != nil {
		logger.Error("request loop failed", "error", err)
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	root := fs.String("root", "", "project state directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	if *root != "" {
		cfg.Root = *root
	}

	log.Setup(cfg.LogLevel)

	l, err := layout.New(cfg.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}

	db, err := history.OpenSQLite(context.Background(), l.HistoryDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	defer db.Close()

	program := tea.NewProgram(watch.New(history.NewStore(db)))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}

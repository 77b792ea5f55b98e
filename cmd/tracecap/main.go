package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/tracecap"
	"github.com/loykin/tracecap/internal/logger"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "tracecap",
		Short: "Local capture server for runtime execution traces",
		Long: `Tracecap runs a local HTTP listener that accepts trace records and
appends them durably to an NDJSON log for later inspection.

Examples:
  tracecap serve                    # Start the capture server
  tracecap serve --port=7070        # Bind an explicit port
  tracecap submit --label=step1 --data='{"x":1}'
  tracecap read --tail=20
  tracecap status
  tracecap stop`,
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		createServeCommand(globalFlags),
		createStopCommand(globalFlags),
		createStatusCommand(globalFlags),
		createReadCommand(globalFlags),
		createClearCommand(globalFlags),
		createSubmitCommand(globalFlags),
	)
	return root
}

// createServeCommand creates the serve subcommand.
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the capture server",
		Long: `Start the capture server. Without --port the last bound port is
reused when one was persisted; otherwise the platform assigns one.

Examples:
  tracecap serve                    # Reuse the persisted port or pick one
  tracecap serve --port=7070        # Bind an explicit port
  tracecap serve --daemonize        # Run in the background`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			if len(args) > 0 {
				serveFlags.ConfigPath = args[0]
			}
			return runServe(serveFlags)
		},
	}

	cmd.Flags().IntVar(&serveFlags.Port, "port", 0, "port to bind (0 = persisted or ephemeral)")
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon output to file")
	return cmd
}

func runServe(flags *ServeFlags) error {
	cmdCtx := command{configPath: flags.ConfigPath}
	cfg, err := cmdCtx.loadConfig()
	if err != nil {
		return err
	}

	if flags.Daemonize {
		pidfile := ""
		logfile := flags.LogFile
		if cfg.Server != nil {
			pidfile = cfg.Server.PidFile
			if logfile == "" {
				logfile = cfg.Server.LogFile
			}
		}
		return daemonize(pidfile, logfile)
	}

	var logCfg logger.Config
	if cfg.Log != nil {
		logCfg = logger.Config{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	log := logger.New(logCfg)
	slog.SetDefault(log)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := tracecap.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := tracecap.ServeMetrics(cfg.Metrics.Listen); err != nil {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	basePath := ""
	if cfg.Server != nil {
		basePath = cfg.Server.BasePath
	}
	srv := tracecap.NewWithBasePath(tracecap.Config{
		Host:          cfg.Server.Host,
		LogPath:       cfg.Capture.LogPath,
		PortFile:      cfg.Capture.PortFile,
		FlushInterval: cfg.Capture.FlushInterval,
	}, basePath)
	srv.SetLogger(log)

	if cfg.History != nil && cfg.History.DSN != "" {
		sink, err := tracecap.NewHistorySink(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("configure history sink: %w", err)
		}
		srv.SetHistorySink(sink)
		log.Info("history sink enabled", "dsn", cfg.History.DSN)
	}

	port := flags.Port
	if port == 0 && cfg.Server != nil {
		port = cfg.Server.Port
	}
	binding, err := srv.Start(port)
	if err != nil {
		return err
	}
	fmt.Printf("Capture server listening on %s (log: %s)\n", binding.URL, cfg.Capture.LogPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	if err := srv.Stop(); err != nil {
		return err
	}
	_ = removePidFile(cfg.Server.PidFile)
	return nil
}

// createStopCommand creates the stop subcommand.
func createStopCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &RemoteFlags{}
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running capture server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{configPath: globalFlags.ConfigPath}.Stop(*flags)
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

// createStatusCommand creates the status subcommand.
func createStatusCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &RemoteFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show capture server status",
		Long: `Show whether the capture server is running and on which port.
While stopped, the port persisted by the last session is reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{configPath: globalFlags.ConfigPath}.Status(*flags)
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

// createReadCommand creates the read subcommand.
func createReadCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &ReadFlags{}
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read captured records",
		Long: `Print captured records as JSON. Reads through the daemon when one
is running so buffered records are flushed first; otherwise reads the
log file directly.

Examples:
  tracecap read
  tracecap read --tail=50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{configPath: globalFlags.ConfigPath}.Read(*flags)
		},
	}
	cmd.Flags().IntVar(&flags.Tail, "tail", 0, "return only the last N records")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (e.g. http://127.0.0.1:7070)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

// createClearCommand creates the clear subcommand.
func createClearCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &RemoteFlags{}
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the capture log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{configPath: globalFlags.ConfigPath}.Clear(*flags)
		},
	}
	addRemoteFlags(cmd, flags)
	return cmd
}

// createSubmitCommand creates the submit subcommand.
func createSubmitCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &SubmitFlags{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one record to a running capture server",
		Long: `Submit a record from the command line. Useful for testing
instrumentation and for shell-based capture clients.

Examples:
  tracecap submit --label=deploy --data='{"version":"1.2.3"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{configPath: globalFlags.ConfigPath}.Submit(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Label, "label", "", "record label (defaults to unknown)")
	cmd.Flags().StringVar(&flags.Data, "data", "", "record payload as JSON")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (e.g. http://127.0.0.1:7070)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

func addRemoteFlags(cmd *cobra.Command, flags *RemoteFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (e.g. http://127.0.0.1:7070)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

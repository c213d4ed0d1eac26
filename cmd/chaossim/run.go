package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chaossim/internal/admin"
	"chaossim/internal/config"
	"chaossim/internal/diagnose"
	"chaossim/internal/logging"
	"chaossim/internal/scenario"
	"chaossim/internal/sim"
)

var (
	runConfigPath string
	runSchemaPath string
	runOutput     string
	runLogFile    string
	runDebugLog   string
	runAdminAddr  string
	runScenario   string
)

// scenarioTick is how often a drill checks its phase triggers.
const scenarioTick = time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chaos console",
	Long:  "run starts the simulated node, the diagnosis scheduler and the admin API, exporting rows to the selected sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		cfg, err := config.Load(runConfigPath, runSchemaPath)
		if err != nil {
			return err
		}
		if id := os.Getenv("NODE_ID"); id != "" {
			cfg.NodeID = id
		}
		if runAdminAddr != "" {
			cfg.Admin.Addr = runAdminAddr
		}

		var drill *scenario.Scenario
		if runScenario != "" {
			if drill, err = scenario.Resolve(runScenario); err != nil {
				return err
			}
		}

		output, err := resolveOutput(runOutput, term.IsTerminal(int(os.Stdout.Fd())))
		if err != nil {
			return err
		}
		logger, closeLog, err := newLogger(output, runDebugLog, level)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		sinks, err := newSinks(ctx, cfg.NodeID, output, runLogFile)
		if err != nil {
			return err
		}
		defer sinks.Close()

		session := sim.NewSession(cfg, newDiagnoser(cfg, logger), sinks.writer, sinks.writer, sinks.writer)
		if sinks.tui != nil {
			sinks.tui.SetControls(session)
		}

		if cfg.Admin.Addr != "" {
			srv := admin.NewServer(session)
			go func() {
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil {
					logger.Error("admin server failed", "addr", cfg.Admin.Addr, "err", err)
					stop()
				}
			}()
		}

		if drill != nil {
			runner := scenario.NewRunner(drill, session, scenarioTick)
			go func() {
				if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("scenario failed", "scenario", drill.Name, "err", err)
				}
			}()
		}

		session.Run(ctx)
		session.Wait()
		logger.Info("chaos console stopped")
		return nil
	},
}

// resolveOutput picks the console when STDOUT is a terminal and JSON lines otherwise.
func resolveOutput(flag string, tty bool) (string, error) {
	switch flag {
	case "":
		if tty {
			return outputTUI, nil
		}
		return outputJSON, nil
	case outputTUI, outputJSON, outputQuiet:
		return flag, nil
	}
	return "", fmt.Errorf("unknown output %q (want tui, json or quiet)", flag)
}

// newLogger keeps diagnostics off the terminal while the console owns it.
func newLogger(output, path string, level slog.Level) (*slog.Logger, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return logging.NewWithLevel(f, level), func() { f.Close() }, nil
	}
	if output == outputTUI {
		return logging.NewWithLevel(io.Discard, level), func() {}, nil
	}
	return logging.NewWithLevel(os.Stderr, level), func() {}, nil
}

// newDiagnoser uses the reasoning service when a key is available and the
// local rule set otherwise.
func newDiagnoser(cfg *config.Config, logger *slog.Logger) diagnose.Diagnoser {
	if cfg.Diagnose.Provider == config.ProviderRules {
		return diagnose.NewRuleBased()
	}
	key := cfg.Diagnose.APIKey()
	if key == "" {
		logger.Warn("no API key set, falling back to rule-based diagnosis", "env", cfg.Diagnose.APIKeyEnv)
		return diagnose.NewRuleBased()
	}
	return diagnose.NewClient(cfg.Diagnose, key, cfg.Retention.SnapshotLogs, logger)
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to console configuration YAML (defaults apply when empty)")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Output mode: tui, json or quiet (tui on a terminal, json otherwise)")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Path to export state rows (JSONL); logs and audit go to .logs and .audit siblings")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Path for diagnostic logs (discarded in tui mode when empty)")
	runCmd.Flags().StringVar(&runAdminAddr, "admin-addr", "", "Admin API listen address (overrides config)")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Chaos drill to play: built-in name (memory-storm, cascading-failure, disk-fill) or YAML path")
}

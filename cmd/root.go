// Package cmd implements the kernelsim CLI: the supervisor's default run,
// plus the hidden re-exec entry points used for the interrupt controller
// and application children.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kernelsim/kernel"
	"kernelsim/logging"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// Simulation parameters, bound to rootCmd's persistent flags and read by
// runSupervisor to build a kernel.Config.
var (
	flagN           int
	flagQuantumMs   int
	flagP1          int
	flagP2          int
	flagMaxPC       int
	flagSyscallProb int
	flagSFSSAddr    string
	flagSlotDir     string
)

// Global logging flags, mirroring the teacher's --log/--log-format/--debug
// convention.
var (
	globalLog       string
	globalLogFormat string
	globalDebug     bool
)

// rootCmd is the base command for kernelsim. Running it with no subcommand
// starts the supervisor; "inter" and "app" are internal re-exec targets
// (spec §4.1's "spawn IC and N apps by re-executing self").
var rootCmd = &cobra.Command{
	Use:   "kernelsim",
	Short: "Micro-kernel process scheduling simulator",
	Long: `kernelsim simulates a tiny round-robin kernel: a PCB table, a
paced interrupt controller, and N application processes, all driven by OS
signals and a shared-memory reply slot per app, talking to a separate SFSS
file-storage server over UDP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: runSupervisor,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetContext returns a context cancelled on SIGTERM. SIGINT and SIGCONT are
// deliberately left unclaimed here: the supervisor's own Run loop listens
// for them directly to implement the pause/resume snapshot request (spec
// §6), so a context-level signal.NotifyContext on SIGINT would steal it.
func GetContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	return ctx
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagN, "n", 4, "number of application processes")
	rootCmd.PersistentFlags().IntVar(&flagQuantumMs, "quantum-ms", 500, "scheduling quantum in milliseconds")
	rootCmd.PersistentFlags().IntVar(&flagP1, "p1", 3, "1/P1 probability of an IRQ1 piggyback per tick")
	rootCmd.PersistentFlags().IntVar(&flagP2, "p2", 5, "1/P2 probability of an IRQ2 piggyback per tick")
	rootCmd.PersistentFlags().IntVar(&flagMaxPC, "max-pc", 20, "ticks an application runs before exiting")
	rootCmd.PersistentFlags().IntVar(&flagSyscallProb, "syscall-prob", 4, "1/SYSCALL_PROB probability of a syscall per app tick")
	rootCmd.PersistentFlags().StringVar(&flagSFSSAddr, "sfss-addr", "127.0.0.1:8888", "SFSS server UDP address")
	rootCmd.PersistentFlags().StringVar(&flagSlotDir, "slot-dir", "", "directory for shared reply slot files (default: a temp dir)")

	rootCmd.PersistentFlags().StringVar(&globalLog, "log", "", "set the log file path")
	rootCmd.PersistentFlags().StringVar(&globalLogFormat, "log-format", "text", "set the format for log output (text or json)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "enable debug logging")
}

func setupLogging() {
	logOutput := os.Stderr
	if globalLog != "" {
		f, err := os.OpenFile(globalLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			logOutput = f
		}
	}

	logLevel := slog.LevelInfo
	if globalDebug {
		logLevel = slog.LevelDebug
	}

	logger := logging.NewLogger(logging.Config{
		Level:  logLevel,
		Format: globalLogFormat,
		Output: logOutput,
	})
	logging.SetDefault(logger)
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	slotDir := flagSlotDir
	if slotDir == "" {
		dir, err := os.MkdirTemp("", "kernelsim-slots-")
		if err != nil {
			return fmt.Errorf("create slot dir: %w", err)
		}
		defer os.RemoveAll(dir)
		slotDir = dir
	}

	cfg := kernel.Config{
		N:            flagN,
		QuantumMs:    flagQuantumMs,
		P1:           flagP1,
		P2:           flagP2,
		MaxPC:        flagMaxPC,
		SyscallProb:  flagSyscallProb,
		SFSSEndpoint: flagSFSSAddr,
	}

	k, err := kernel.NewKernel(cfg, slotDir, logging.Default())
	if err != nil {
		return err
	}
	return k.Run(ctx)
}

// newRand seeds a per-process PRNG for IC/app probabilistic behavior,
// offsetting by an id so sibling children started in the same millisecond
// don't share a stream.
func newRand(salt int) *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano() + int64(salt)))
}

// sfss-server runs the Simple File Storage Service: a stateless UDP
// datagram server that the kernelsim supervisor talks to over SFP, serving
// READ/WRITE/ADD/REM/LISTDIR requests against a root directory with
// per-owner A0..AN subdirectories precreated at startup.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kernelsim/logging"
	"kernelsim/sfss"
)

var (
	flagPort  int
	flagN     int
	flagDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "sfss-server <root-dir>",
	Short:         "Simple File Storage Service UDP server",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().IntVar(&flagPort, "port", sfss.DefaultPort, "UDP port to bind")
	rootCmd.Flags().IntVar(&flagN, "n", 4, "number of application owners (precreates A0..An)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	log := logging.NewLogger(logging.Config{Level: level, Format: "text", Output: os.Stderr})

	root := args[0]
	server, err := sfss.NewServer(root, flagN, flagPort, log)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("sfss-server listening", "root", root, "port", flagPort)
	return server.Serve(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sfss-server: %v\n", err)
		os.Exit(1)
	}
}

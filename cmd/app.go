package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"kernelsim/appproc"
	"kernelsim/logging"
)

var appCmd = &cobra.Command{
	Use:    "app [id]",
	Short:  "Run one application process (internal use)",
	Long:   `Internal command re-exec'd by the supervisor to run a single application's tick/syscall loop.`,
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runApp,
}

func init() {
	rootCmd.AddCommand(appCmd)
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := appproc.ConfigFromEnv()
	if err != nil {
		return err
	}
	return appproc.Run(os.Stdout, cfg, newRand(cfg.AppID), logging.Default())
}

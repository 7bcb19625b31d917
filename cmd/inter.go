package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"kernelsim/interrupt"
)

var interCmd = &cobra.Command{
	Use:    "inter",
	Short:  "Run the interrupt controller (internal use)",
	Long:   `Internal command re-exec'd by the supervisor to run the interrupt controller's paced IRQ loop.`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runInter,
}

func init() {
	rootCmd.AddCommand(interCmd)
}

func runInter(cmd *cobra.Command, args []string) error {
	cfg, err := interrupt.ConfigFromEnv()
	if err != nil {
		return err
	}
	return interrupt.Run(os.Stdout, cfg, newRand(0))
}

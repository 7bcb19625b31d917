// kernelsim simulates a tiny round-robin micro-kernel: a PCB table, a
// paced interrupt controller, and N application processes, talking to a
// separate SFSS file-storage server over UDP.
//
// Commands:
//
//	(default) - Run the supervisor: spawn the interrupt controller and
//	            N applications, and drive the scheduler until every PCB
//	            terminates.
//	inter     - Internal command for the interrupt controller
//	app       - Internal command for one application process
package main

import (
	"fmt"
	"os"

	"kernelsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kernelsim: %v\n", err)
		os.Exit(1)
	}
}

package kernel

import (
	"fmt"
	"io"
)

// Snapshot prints the read-only supervisor state described in spec §4.1:
// per-PCB id/pid/pc/state (with the pending message type if BLOCKED), the
// ready queue head-to-tail, the currently running id, and the two FIFO
// depths. Snapshot never mutates scheduler or queue state.
func Snapshot(w io.Writer, sched *Scheduler, fileReplies, dirReplies *ReplyQueue) error {
	for _, pcb := range sched.PCBs() {
		line := fmt.Sprintf("A%d pid=%d pc=%d %s", pcb.ID, pcb.Pid, pcb.PC, pcb.State)
		if pcb.State == Blocked && pcb.Pending != nil {
			line += fmt.Sprintf(", waiting SFP_MSG %s", pcb.Pending.Type)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	runningID := 0
	if running, ok := sched.Running(); ok {
		runningID = running.ID
	}
	if _, err := fmt.Fprintf(w, "running=A%d ready_queue=%v\n", runningID, sched.ReadyQueueSnapshot()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "file_replies=%d dir_replies=%d\n", fileReplies.Len(), dirReplies.Len()); err != nil {
		return err
	}
	return nil
}

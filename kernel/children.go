package kernel

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	kerrors "kernelsim/errors"
	"kernelsim/ipc"
)

// Environment variables the supervisor passes to re-exec'd children,
// mirroring the teacher's _RUNC_GO_INIT_* convention for carrying
// configuration across a re-exec boundary instead of a config file.
const (
	EnvQuantumMillis = "_KERNELSIM_QUANTUM_MS"
	EnvP1            = "_KERNELSIM_P1"
	EnvP2            = "_KERNELSIM_P2"
	EnvMaxPC         = "_KERNELSIM_MAX_PC"
	EnvSyscallProb   = "_KERNELSIM_SYSCALL_PROB"
	EnvAppID         = "_KERNELSIM_APP_ID"
	EnvReplySlotPath = "_KERNELSIM_REPLY_SLOT_PATH"
)

// LineEvent is one line read from a child's stdout, tagged with its
// source so the supervisor's single consumer loop can tell an IC line
// from an app line without per-child plumbing.
type LineEvent struct {
	// AppID is 0 for the interrupt controller, 1..N for an application.
	AppID int
	Line  string
}

// Child is a spawned kernelsim subprocess (the interrupt controller or one
// application), re-exec'd from the supervisor's own binary the way the
// teacher re-execs itself as "init" — here as "inter" or "app <id>".
type Child struct {
	AppID  int // 0 for the IC
	Cmd    *exec.Cmd
	Pid    int
	stdout io.ReadCloser
	ready  *ipc.SyncPipe
}

// Config carries the simulation parameters read once at startup and
// propagated to children via environment variables.
type Config struct {
	N            int
	QuantumMs    int
	P1           int
	P2           int
	MaxPC        int
	SyscallProb  int
	SFSSEndpoint string
}

// SpawnIC re-execs self in "inter" mode, wiring P1/P2/quantum via the
// environment and capturing stdout for the IRQ0/IRQ1/IRQ2 line stream.
func SpawnIC(self string, cfg Config) (*Child, error) {
	cmd := exec.Command(self, "inter")
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", EnvQuantumMillis, cfg.QuantumMs),
		fmt.Sprintf("%s=%d", EnvP1, cfg.P1),
		fmt.Sprintf("%s=%d", EnvP2, cfg.P2),
	)
	return spawn(cmd, 0)
}

// SpawnApp re-execs self in "app <id>" mode, wiring MAX_PC, SYSCALL_PROB,
// and the app's reply slot path via the environment, and capturing stdout
// for its TICK/DONE/syscall line stream. The child inherits the write end
// of a sync pipe (fd ipc.ReadyFD) and is expected to call ipc.Signal once
// it has opened its reply slot, before self-stopping.
func SpawnApp(self string, id int, cfg Config, replySlotPath string) (*Child, error) {
	cmd := exec.Command(self, "app", strconv.Itoa(id))
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", EnvAppID, id),
		fmt.Sprintf("%s=%d", EnvQuantumMillis, cfg.QuantumMs),
		fmt.Sprintf("%s=%d", EnvMaxPC, cfg.MaxPC),
		fmt.Sprintf("%s=%d", EnvSyscallProb, cfg.SyscallProb),
		fmt.Sprintf("%s=%s", EnvReplySlotPath, replySlotPath),
	)
	return spawn(cmd, id)
}

func spawn(cmd *exec.Cmd, appID int) (*Child, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "spawn: stdout pipe")
	}
	cmd.Stderr = os.Stderr

	readyPipe, err := ipc.NewSyncPipe()
	if err != nil {
		return nil, err
	}
	cmd.ExtraFiles = []*os.File{readyPipe.ChildFile()}
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", ipc.ReadyFDEnv, ipc.ReadyFD))

	// Children are started stopped-by-convention: spec §4.2/§4.3 has both
	// the IC and each app stop themselves immediately as their first
	// action, so the supervisor controls the very first CONT.
	if err := cmd.Start(); err != nil {
		readyPipe.Close()
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "spawn: start")
	}
	// The child's own copy of the fd was duplicated across exec; this
	// process no longer needs its write end.
	readyPipe.CloseChild()

	return &Child{
		AppID:  appID,
		Cmd:    cmd,
		Pid:    cmd.Process.Pid,
		stdout: stdout,
		ready:  readyPipe,
	}, nil
}

// WaitReady blocks until the child signals it has finished startup
// (opening its reply slot, for an app) and is about to self-stop.
func (c *Child) WaitReady() error {
	return c.ready.Wait()
}

// readChunkSize is the raw read buffer for ReadLines; a line the IC or an
// app ever emits is far smaller than this, so one Read call normally
// yields one or more complete lines plus at most a short partial tail.
const readChunkSize = 4096

// ReadLines runs until the child's stdout is closed, pushing LineEvents
// onto out. It reads raw chunks off the pipe and feeds them through a
// LineSplitter rather than assuming each Read lands on a line boundary,
// per spec §4.4: a line split across two reads is buffered, not emitted
// early or dropped. It is meant to run in its own goroutine, one per
// child, supervised by an errgroup in the kernel's main loop.
func (c *Child) ReadLines(out chan<- LineEvent) error {
	var splitter LineSplitter
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.stdout.Read(buf)
		for _, line := range splitter.Feed(buf[:n]) {
			out <- LineEvent{AppID: c.AppID, Line: line}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return kerrors.WrapWithSubject(err, kerrors.ErrTransient, "read child stdout", childLabel(c.AppID))
		}
	}
}

// Stop sends SIGSTOP to the child, implementing the RUNNING->READY
// transition's "signal child to stop" side effect.
func (c *Child) Stop() error {
	if err := c.Cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return kerrors.WrapWithSubject(err, kerrors.ErrTransient, "stop child", childLabel(c.AppID))
	}
	return nil
}

// Continue sends SIGCONT to the child, implementing the READY->RUNNING
// transition's "signal child to continue" side effect.
func (c *Child) Continue() error {
	if err := c.Cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return kerrors.WrapWithSubject(err, kerrors.ErrTransient, "continue child", childLabel(c.AppID))
	}
	return nil
}

// Terminate sends SIGTERM, used only at full-shutdown for the IC (spec
// §4.1's "when every PCB is TERMINATED, terminate the IC").
func (c *Child) Terminate() error {
	if err := c.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return kerrors.WrapWithSubject(err, kerrors.ErrTransient, "terminate child", childLabel(c.AppID))
	}
	return nil
}

// Reap performs a blocking wait on the child; it is expected to be called
// from the same goroutine as ReadLines once stdout has closed (the child
// has exited or is about to).
func (c *Child) Reap() (*os.ProcessState, error) {
	state, err := c.Cmd.Process.Wait()
	if err != nil {
		return nil, kerrors.WrapWithSubject(err, kerrors.ErrTransient, "reap child", childLabel(c.AppID))
	}
	return state, nil
}

func childLabel(appID int) string {
	if appID == 0 {
		return "IC"
	}
	return fmt.Sprintf("A%d", appID)
}

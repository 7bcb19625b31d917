package kernel

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	kerrors "kernelsim/errors"
	"kernelsim/ipc"
	"kernelsim/sfp"
)

// Kernel is the single-threaded cooperative supervisor of spec §5: it
// owns the scheduler, the dispatcher, the spawned children, and the
// readiness multiplexer that replaces the original signal-driven wakeup
// with a Go select over channels fed by per-child reader goroutines.
type Kernel struct {
	cfg      Config
	sched    *Scheduler
	dispatch *Dispatcher
	udp      *UDPSender
	slots    *ipc.ReplySlotSet
	ic       *Child
	apps     []*Child
	log      *slog.Logger
}

// NewKernel creates the reply slot set, spawns the interrupt controller
// and N application children, dials the SFSS endpoint, and wires the
// scheduler and dispatcher. Any failure here is lifecycle-fatal per
// spec §7.
func NewKernel(cfg Config, slotDir string, log *slog.Logger) (*Kernel, error) {
	if log == nil {
		log = slog.Default()
	}

	self, err := os.Executable()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "resolve self executable")
	}

	slots, err := ipc.NewReplySlotSet(slotDir, cfg.N)
	if err != nil {
		return nil, err
	}

	ic, err := SpawnIC(self, cfg)
	if err != nil {
		slots.Close()
		return nil, err
	}
	if err := ic.WaitReady(); err != nil {
		slots.Close()
		return nil, err
	}

	apps := make([]*Child, 0, cfg.N)
	for id := 1; id <= cfg.N; id++ {
		app, err := SpawnApp(self, id, cfg, slots.Path(id))
		if err != nil {
			slots.Close()
			return nil, err
		}
		if err := app.WaitReady(); err != nil {
			slots.Close()
			return nil, err
		}
		apps = append(apps, app)
	}

	udp, err := DialSFSS(cfg.SFSSEndpoint)
	if err != nil {
		slots.Close()
		return nil, err
	}

	sched := NewScheduler(cfg.N)
	for i, app := range apps {
		sched.pcbs[i].Pid = app.Pid
	}

	fileReplies := NewReplyQueue(cfg.N)
	dirReplies := NewReplyQueue(cfg.N)
	dispatch := NewDispatcher(sched, fileReplies, dirReplies, udp, slots, log)

	return &Kernel{
		cfg:      cfg,
		sched:    sched,
		dispatch: dispatch,
		udp:      udp,
		slots:    slots,
		ic:       ic,
		apps:     apps,
		log:      log,
	}, nil
}

// appChild returns the Child for a logical app id, or nil if out of range.
func (k *Kernel) appChild(id int) *Child {
	if id < 1 || id > len(k.apps) {
		return nil
	}
	return k.apps[id-1]
}

// resume signals a newly-RUNNING PCB's child to continue; nil is a no-op
// (the scheduler went idle).
func (k *Kernel) resume(pcb *PCB) {
	if pcb == nil {
		return
	}
	if child := k.appChild(pcb.ID); child != nil {
		if err := child.Continue(); err != nil {
			k.log.Warn("failed to resume child", "app", pcb.ID, "err", err)
		}
	}
}

// Run drives the readiness multiplexer until every PCB reaches
// TERMINATED or ctx is cancelled. It is the Go-channel equivalent of the
// signal-edge-flag loop described in spec §5: per-child reader goroutines
// and the SFP reply reader all feed a single select, so all scheduling
// decisions are made on one goroutine with no locking.
func (k *Kernel) Run(ctx context.Context) error {
	lineCh := make(chan LineEvent, 64)
	replyCh := make(chan sfp.Message, 64)
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGCONT)
	defer signal.Stop(sigCh)

	reapCh := make(chan int, len(k.apps))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := k.ic.ReadLines(lineCh)
		if _, reapErr := k.ic.Reap(); reapErr != nil {
			k.log.Warn("failed to reap ic", "err", reapErr)
		}
		return err
	})
	for _, app := range k.apps {
		app := app
		group.Go(func() error {
			err := app.ReadLines(lineCh)
			if _, reapErr := app.Reap(); reapErr != nil {
				k.log.Warn("failed to reap child", "app", app.AppID, "err", reapErr)
			}
			select {
			case reapCh <- app.AppID:
			case <-gctx.Done():
			}
			return err
		})
	}
	group.Go(func() error { return k.readReplies(gctx, replyCh) })

	// The IC and every app start stopped-by-convention (spec §4.2/§4.3):
	// both self-SIGSTOP as their first action so the supervisor controls
	// the very first CONT. Kick off the IC's tick stream now, and put the
	// first PCB RUNNING immediately rather than leaving every app idle
	// until the IC's first IRQ0 line arrives a full quantum from now.
	if err := k.ic.Continue(); err != nil {
		k.log.Warn("failed to start ic", "err", err)
	}
	k.resume(k.sched.ScheduleNext())

	var pausedRunning *PCB
	running := true
	for running {
		select {
		case <-gctx.Done():
			running = false

		case line, ok := <-lineCh:
			if !ok {
				continue
			}
			k.handleLine(line)
			if k.sched.AllTerminated() {
				running = false
			}

		case msg, ok := <-replyCh:
			if !ok {
				continue
			}
			k.dispatch.EnqueueReply(msg)

		case appID, ok := <-reapCh:
			if !ok {
				continue
			}
			k.handleReap(appID)
			if k.sched.AllTerminated() {
				running = false
			}

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT:
				pausedRunning = k.pause()
			case syscall.SIGCONT:
				k.unpause(pausedRunning)
				pausedRunning = nil
			}
		}
	}

	k.shutdown()
	return group.Wait()
}

// handleReap implements spec §4.1's non-blocking-reap termination path: a
// child observed to have exited (its stdout pipe closed) flips its PCB to
// TERMINATED if it is not already there, covering deaths that never
// produced a DONE line.
func (k *Kernel) handleReap(appID int) {
	wasRunning := k.sched.Terminate(appID)
	if wasRunning {
		k.resume(k.sched.ScheduleNext())
	}
}

// handleLine classifies one line by its source child and applies the
// corresponding transition: IC lines are IRQ0/1/2, app lines are
// TICK/DONE/syscalls.
func (k *Kernel) handleLine(line LineEvent) {
	if line.AppID == 0 {
		k.handleIRQLine(line.Line)
		return
	}
	k.handleAppLine(line)
}

func (k *Kernel) handleIRQLine(raw string) {
	switch ParseIRQLine(raw) {
	case IRQ0:
		demoted, now := k.sched.OnQuantumTick()
		if demoted != nil {
			if child := k.appChild(demoted.ID); child != nil {
				if err := child.Stop(); err != nil {
					k.log.Warn("failed to stop child on quantum tick", "app", demoted.ID, "err", err)
				}
			}
		}
		k.resume(now)
	case IRQ1, IRQ2:
		now := k.dispatch.HandleIRQ(ParseIRQLine(raw))
		k.resume(now)
	default:
		k.log.Warn("dropping malformed IC line", "line", raw)
	}
}

func (k *Kernel) handleAppLine(line LineEvent) {
	ev, err := ParseAppLine(line.Line)
	if err != nil {
		k.log.Warn("dropping malformed app line", "app", line.AppID, "line", line.Line, "err", err)
		return
	}

	pcb, ok := k.sched.PCB(ev.AppID)
	if !ok {
		k.log.Warn("line from unknown app id", "app", ev.AppID)
		return
	}

	switch ev.Kind {
	case EventTick:
		pcb.PC = ev.PC
		pcb.Pid = ev.Pid
	case EventDone:
		pcb.Pid = ev.Pid
		wasRunning := k.sched.Terminate(ev.AppID)
		if wasRunning {
			k.resume(k.sched.ScheduleNext())
		}
	case EventSyscall:
		now := k.dispatch.HandleSyscall(ev)
		k.resume(now)
	}
}

// pause implements the out-of-band snapshot request: stop the currently
// running child and the IC, print the read-only snapshot, and return the
// PCB that was running so resume can re-signal only that one child.
func (k *Kernel) pause() *PCB {
	running, _ := k.sched.Running()
	if running != nil {
		if child := k.appChild(running.ID); child != nil {
			if err := child.Stop(); err != nil {
				k.log.Warn("failed to stop running child for snapshot", "app", running.ID, "err", err)
			}
		}
	}
	if err := k.ic.Stop(); err != nil {
		k.log.Warn("failed to stop IC for snapshot", "err", err)
	}

	if err := Snapshot(os.Stdout, k.sched, k.dispatch.fileReplies, k.dispatch.dirReplies); err != nil {
		k.log.Warn("failed to print snapshot", "err", err)
	}
	return running
}

// unpause resumes the IC and the PCB that was running before pause, if
// still RUNNING.
func (k *Kernel) unpause(wasRunning *PCB) {
	if err := k.ic.Continue(); err != nil {
		k.log.Warn("failed to resume IC", "err", err)
	}
	if wasRunning != nil && wasRunning.State == Running {
		k.resume(wasRunning)
	}
}

// shutdown implements spec §4.1's termination sequence: terminate the IC,
// release the SFSS socket, and unmap the shared reply slots. Every child,
// including the IC just terminated here, is reaped by its own ReadLines
// goroutine once its stdout pipe closes (see handleReap).
func (k *Kernel) shutdown() {
	if err := k.ic.Terminate(); err != nil {
		k.log.Warn("failed to terminate IC", "err", err)
	}
	if err := k.udp.Close(); err != nil {
		k.log.Warn("failed to close sfss socket", "err", err)
	}
	if err := k.slots.Close(); err != nil {
		k.log.Warn("failed to release reply slots", "err", err)
	}
}

// readReplies blocks reading and decoding SFP reply datagrams from SFSS
// until the context is cancelled, pushing each onto out. It runs in its
// own errgroup goroutine alongside the per-child line readers.
func (k *Kernel) readReplies(ctx context.Context, out chan<- sfp.Message) error {
	buf := make([]byte, sfpDatagramBufSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		msg, err := k.udp.ReadReply(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.log.Warn("failed to read sfp reply datagram", "err", err)
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// sfpDatagramBufSize is large enough to hold the largest SFP record
// (a full DL_REP listing), with slack for alignment padding.
const sfpDatagramBufSize = 4096

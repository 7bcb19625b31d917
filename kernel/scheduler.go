package kernel

import "kernelsim/sfp"

// Scheduler owns the PCB table, the ready queue, and the single
// currently-running index, and implements the round-robin policy of
// spec §4.1. Per the design note on global mutable state, a Scheduler is
// mutated exclusively by the supervisor's main loop goroutine — there is
// no internal locking, because the kernel is single-threaded cooperative.
type Scheduler struct {
	pcbs      []*PCB
	ready     *ReadyQueue
	runningID int // 0 means no PCB is running
	idle      bool
}

// NewScheduler creates a Scheduler for n applications (logical ids 1..n),
// all initially Ready and queued in id order.
func NewScheduler(n int) *Scheduler {
	s := &Scheduler{
		pcbs:  make([]*PCB, n),
		ready: NewReadyQueue(n),
	}
	for i := 0; i < n; i++ {
		pcb := NewPCB(i + 1)
		s.pcbs[i] = pcb
		s.ready.PushTail(pcb.ID)
	}
	return s
}

// PCB returns the PCB for a logical id, or false if id is out of range.
func (s *Scheduler) PCB(id int) (*PCB, bool) {
	if id < 1 || id > len(s.pcbs) {
		return nil, false
	}
	return s.pcbs[id-1], true
}

// Running returns the currently RUNNING PCB, if any.
func (s *Scheduler) Running() (*PCB, bool) {
	if s.runningID == 0 {
		return nil, false
	}
	return s.PCB(s.runningID)
}

// Idle reports whether the last scheduling pass found nothing READY.
func (s *Scheduler) Idle() bool {
	return s.idle
}

// ReadyQueueSnapshot exposes the ready queue contents head-to-tail, for the
// pause-request printer.
func (s *Scheduler) ReadyQueueSnapshot() []int {
	return s.ready.Snapshot()
}

// ScheduleNext implements schedule_next(): pop from the head up to |Q|
// times. The first popped id in state Ready becomes Running. Popped
// Blocked ids are re-pushed to the tail; popped Terminated ids are
// dropped. A PCB still Running when ScheduleNext is called is first
// demoted to Ready and pushed to the tail, so at most one PCB is ever
// Running. If no Ready id turns up, the ready queue is reconciled against
// PCB state (the recovery invariant) and scanned once more; the scheduler
// goes Idle only if that pass finds nothing Ready either.
func (s *Scheduler) ScheduleNext() *PCB {
	if running, ok := s.Running(); ok {
		running.State = Ready
		s.ready.PushTail(running.ID)
		s.runningID = 0
	}
	for round := 0; round < 2; round++ {
		if round == 1 {
			s.reconcile()
		}
		passes := s.ready.Len()
		for i := 0; i < passes; i++ {
			id, ok := s.ready.PopHead()
			if !ok {
				break
			}
			pcb, _ := s.PCB(id)
			switch pcb.State {
			case Ready:
				pcb.State = Running
				s.runningID = id
				s.idle = false
				return pcb
			case Blocked:
				s.ready.PushTail(id)
			case Terminated:
				// dropped: a terminated index never re-enters the queue
			default:
				// Running should never appear in the queue; drop defensively
			}
		}
	}

	s.runningID = 0
	s.idle = true
	return nil
}

// reconcile restores the invariant that every Ready PCB is present in the
// ready queue, scanning the PCB table directly. This is the recovery path
// spec §4.1 calls for when a scheduling pass finds nothing but Ready PCBs
// exist outside the queue.
func (s *Scheduler) reconcile() {
	queued := make(map[int]bool, len(s.pcbs))
	for _, id := range s.ready.Snapshot() {
		queued[id] = true
	}
	for _, pcb := range s.pcbs {
		if pcb.State == Ready && !queued[pcb.ID] {
			s.ready.PushTail(pcb.ID)
		}
	}
}

// OnQuantumTick implements the IRQ0 transition: demote the running PCB (if
// any) to Ready and push it to the tail, then schedule the next PCB. It
// returns the demoted PCB (nil if none was running) and the newly running
// PCB (nil if now idle), so the caller can translate both into SIGSTOP/
// SIGCONT signals to the corresponding children.
func (s *Scheduler) OnQuantumTick() (demoted *PCB, nowRunning *PCB) {
	if running, ok := s.Running(); ok {
		running.State = Ready
		s.ready.PushTail(running.ID)
		s.runningID = 0
		demoted = running
	}
	nowRunning = s.ScheduleNext()
	return demoted, nowRunning
}

// Block implements the RUNNING/READY -> BLOCKED transition for an issuing
// syscall: it stores the pending SFP request and reports whether the PCB
// was RUNNING, so the caller knows whether it must also call
// ScheduleNext.
func (s *Scheduler) Block(id int, pending sfp.Message) bool {
	pcb, ok := s.PCB(id)
	if !ok {
		return false
	}
	pcb.State = Blocked
	pcb.Pending = &pending
	wasRunning := s.runningID == id
	if wasRunning {
		s.runningID = 0
	}
	return wasRunning
}

// Unblock implements the BLOCKED -> READY transition on a matching reply.
// Per invariant 4, the caller must have already copied the reply into the
// PCB's shared reply slot before calling Unblock. It returns false without
// effect if the PCB is not currently BLOCKED (the "owner not BLOCKED, log
// and drop" path belongs to the caller). It returns whether the caller
// should invoke ScheduleNext (true iff no PCB is currently running).
func (s *Scheduler) Unblock(id int) bool {
	pcb, ok := s.PCB(id)
	if !ok || pcb.State != Blocked {
		return false
	}
	pcb.State = Ready
	pcb.Pending = nil
	s.ready.PushTail(id)
	return s.runningID == 0
}

// Terminate implements the transition to the absorbing Terminated state.
// It is a no-op if the PCB is already Terminated, and reports whether the
// PCB was RUNNING (so the caller knows to invoke ScheduleNext).
func (s *Scheduler) Terminate(id int) bool {
	pcb, ok := s.PCB(id)
	if !ok || pcb.State == Terminated {
		return false
	}
	wasRunning := s.runningID == id
	pcb.State = Terminated
	if wasRunning {
		s.runningID = 0
	}
	return wasRunning
}

// AllTerminated reports whether every PCB has reached Terminated.
func (s *Scheduler) AllTerminated() bool {
	for _, pcb := range s.pcbs {
		if pcb.State != Terminated {
			return false
		}
	}
	return true
}

// PCBs returns the live PCB slice in logical-id order, for the snapshot
// printer. Callers must not mutate PCB fields outside the supervisor loop.
func (s *Scheduler) PCBs() []*PCB {
	return s.pcbs
}

package kernel

import (
	"bytes"
	"log/slog"
	"testing"

	"kernelsim/sfp"
)

type fakeSender struct {
	sent []sfp.Message
	err  error
}

func (f *fakeSender) Send(msg sfp.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeSlots struct {
	written map[int]sfp.Message
	err     error
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{written: make(map[int]sfp.Message)}
}

func (f *fakeSlots) Write(appID int, msg sfp.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written[appID] = msg
	return nil
}

func newTestDispatcher(n int) (*Dispatcher, *Scheduler, *fakeSender, *fakeSlots) {
	sched := NewScheduler(n)
	files := NewReplyQueue(n)
	dirs := NewReplyQueue(n)
	sender := &fakeSender{}
	slots := newFakeSlots()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	return NewDispatcher(sched, files, dirs, sender, slots, log), sched, sender, slots
}

func TestDispatcher_HandleSyscallBlocksAndSends(t *testing.T) {
	d, sched, sender, _ := newTestDispatcher(2)
	sched.ScheduleNext() // app 1 running

	ev := Event{Kind: EventSyscall, AppID: 1, Request: sfp.ReadRequest(1, "/A1/f.txt", 0)}
	now := d.HandleSyscall(ev)

	pcb, _ := sched.PCB(1)
	if pcb.State != Blocked {
		t.Fatalf("PCB 1 state = %v, want Blocked", pcb.State)
	}
	if pcb.Pending == nil || pcb.Pending.Path != "/A1/f.txt" {
		t.Fatalf("Pending = %+v, want the blocked request", pcb.Pending)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d datagrams, want 1", len(sender.sent))
	}
	if now == nil || now.ID != 2 {
		t.Fatalf("now running = %+v, want PCB 2", now)
	}
}

func TestDispatcher_HandleSyscallWhileNotRunningDoesNotReschedule(t *testing.T) {
	d, sched, _, _ := newTestDispatcher(2)
	// PCB 1 is Ready, not Running.
	pcb, _ := sched.PCB(1)
	if pcb.State != Ready {
		t.Fatalf("precondition: PCB 1 should start Ready, got %v", pcb.State)
	}

	ev := Event{Kind: EventSyscall, AppID: 1, Request: sfp.ReadRequest(1, "/A1/f.txt", 0)}
	now := d.HandleSyscall(ev)
	if now != nil {
		t.Fatalf("HandleSyscall on a non-running PCB should not reschedule, got %+v", now)
	}
	if pcb.State != Blocked {
		t.Fatalf("PCB 1 state = %v, want Blocked", pcb.State)
	}
}

func TestDispatcher_EnqueueReplyClassifiesByType(t *testing.T) {
	d, _, _, _ := newTestDispatcher(2)
	d.EnqueueReply(sfp.ReadRequest(1, "/A1/f.txt", 0).WithStatus(sfp.StatusOK))
	d.EnqueueReply(sfp.ListRequest(1, "/A1").WithStatus(sfp.StatusOK))

	if d.fileReplies.Len() != 1 {
		t.Fatalf("file replies = %d, want 1", d.fileReplies.Len())
	}
	if d.dirReplies.Len() != 1 {
		t.Fatalf("dir replies = %d, want 1", d.dirReplies.Len())
	}
}

func TestDispatcher_HandleIRQDeliversToBlockedOwner(t *testing.T) {
	d, sched, _, slots := newTestDispatcher(2)
	sched.ScheduleNext() // app 1 running
	sched.Block(1, sfp.ReadRequest(1, "/A1/f.txt", 0))

	reply := sfp.ReadRequest(1, "/A1/f.txt", 0).WithStatus(sfp.StatusOK)
	d.EnqueueReply(reply)

	// The unblocked PCB 1 is pushed to the tail behind PCB 2, so the
	// reschedule runs PCB 2 (the ready-queue head).
	now := d.HandleIRQ(IRQ1)
	if now == nil || now.ID != 2 {
		t.Fatalf("HandleIRQ should reschedule the ready-queue head PCB 2, got %+v", now)
	}
	got, ok := slots.written[1]
	if !ok || got.Path != "/A1/f.txt" {
		t.Fatalf("shared slot for app 1 = %+v, ok=%v", got, ok)
	}
	pcb, _ := sched.PCB(1)
	if pcb.State != Ready {
		t.Fatalf("PCB 1 state = %v, want Ready after unblock", pcb.State)
	}
}

func TestDispatcher_HandleIRQSpuriousEmptyQueueIsNoop(t *testing.T) {
	d, _, _, slots := newTestDispatcher(1)
	now := d.HandleIRQ(IRQ2)
	if now != nil {
		t.Fatalf("HandleIRQ on an empty queue should return nil, got %+v", now)
	}
	if len(slots.written) != 0 {
		t.Fatal("no slot should be written for a spurious IRQ")
	}
}

func TestDispatcher_HandleIRQDropsReplyForNonBlockedOwner(t *testing.T) {
	d, sched, _, slots := newTestDispatcher(1)
	// PCB 1 is Ready, not Blocked: the reply should be dropped.
	reply := sfp.ReadRequest(1, "/A1/f.txt", 0).WithStatus(sfp.StatusOK)
	d.EnqueueReply(reply)

	now := d.HandleIRQ(IRQ1)
	if now != nil {
		t.Fatalf("HandleIRQ for a non-blocked owner should not reschedule, got %+v", now)
	}
	if len(slots.written) != 0 {
		t.Fatal("shared slot should not be written for a dropped reply")
	}
	pcb, _ := sched.PCB(1)
	if pcb.State != Ready {
		t.Fatalf("PCB 1 state = %v, want unchanged Ready", pcb.State)
	}
}

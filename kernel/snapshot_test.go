package kernel

import (
	"bytes"
	"strings"
	"testing"

	"kernelsim/sfp"
)

func TestSnapshot_BlockedShowsPendingMsgType(t *testing.T) {
	sched := NewScheduler(5)
	sched.ScheduleNext() // A1 running

	req := sfp.ListRequest(5, "/A5")
	sched.Block(5, req)

	var buf bytes.Buffer
	files := NewReplyQueue(5)
	dirs := NewReplyQueue(5)
	if err := Snapshot(&buf, sched, files, dirs); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "A5 pid=0 pc=0 BLOCKED, waiting SFP_MSG DL_REQ") {
		t.Fatalf("snapshot output = %q, want a BLOCKED/DL_REQ line for A5", out)
	}
	if !strings.Contains(out, "running=A1") {
		t.Fatalf("snapshot output = %q, want running=A1", out)
	}
}

func TestSnapshot_ReadOnly(t *testing.T) {
	sched := NewScheduler(3)
	sched.ScheduleNext()
	before := sched.ReadyQueueSnapshot()

	var buf bytes.Buffer
	files := NewReplyQueue(3)
	dirs := NewReplyQueue(3)
	if err := Snapshot(&buf, sched, files, dirs); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	after := sched.ReadyQueueSnapshot()
	if len(before) != len(after) {
		t.Fatalf("ready queue mutated by Snapshot: before=%v after=%v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("ready queue mutated by Snapshot: before=%v after=%v", before, after)
		}
	}
}

func TestSnapshot_ReportsFIFODepths(t *testing.T) {
	sched := NewScheduler(2)
	files := NewReplyQueue(2)
	dirs := NewReplyQueue(2)
	files.Push(sfp.ReadRequest(1, "/A1/f", 0).WithStatus(sfp.StatusOK))

	var buf bytes.Buffer
	if err := Snapshot(&buf, sched, files, dirs); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.Contains(buf.String(), "file_replies=1 dir_replies=0") {
		t.Fatalf("snapshot output = %q, want file_replies=1 dir_replies=0", buf.String())
	}
}

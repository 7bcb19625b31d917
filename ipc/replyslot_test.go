package ipc

import (
	"path/filepath"
	"testing"

	"kernelsim/sfp"
)

func TestReplySlot_WriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replyslot-A1")

	writer, err := CreateReplySlot(path)
	if err != nil {
		t.Fatalf("CreateReplySlot: %v", err)
	}
	defer writer.Close()

	reader, err := OpenReplySlot(path)
	if err != nil {
		t.Fatalf("OpenReplySlot: %v", err)
	}
	defer reader.Close()

	msg := sfp.ReadRequest(1, "/A1/file.txt", 0).WithStatus(sfp.StatusOK)
	if err := writer.WriteMessage(msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != msg.Type || got.Path != msg.Path || got.Status() != msg.Status() {
		t.Fatalf("got = %+v, want %+v", got, msg)
	}
}

func TestReplySlotSet_WriteOutOfRange(t *testing.T) {
	set, err := NewReplySlotSet(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewReplySlotSet: %v", err)
	}
	defer set.Close()

	if err := set.Write(0, sfp.ReadRequest(1, "/A1/f", 0)); err == nil {
		t.Error("expected error writing to app id 0")
	}
	if err := set.Write(3, sfp.ReadRequest(1, "/A1/f", 0)); err == nil {
		t.Error("expected error writing out of range")
	}
}

func TestReplySlotSet_WriteWithinRange(t *testing.T) {
	set, err := NewReplySlotSet(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("NewReplySlotSet: %v", err)
	}
	defer set.Close()

	msg := sfp.ListRequest(2, "/A2").WithStatus(sfp.StatusOK)
	if err := set.Write(2, msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reader, err := OpenReplySlot(set.Path(2))
	if err != nil {
		t.Fatalf("OpenReplySlot: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != sfp.DlRep {
		t.Fatalf("Type = %v, want DL_REP", got.Type)
	}
}

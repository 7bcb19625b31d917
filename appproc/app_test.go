package appproc

import (
	"math/rand"
	"os"
	"testing"
	"time"

	"kernelsim/kernel"
	"kernelsim/sfp"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(kernel.EnvAppID, "2")
	t.Setenv(kernel.EnvQuantumMillis, "500")
	t.Setenv(kernel.EnvMaxPC, "10")
	t.Setenv(kernel.EnvSyscallProb, "3")
	t.Setenv(kernel.EnvReplySlotPath, "/tmp/replyslot-A2")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.AppID != 2 || cfg.MaxPC != 10 || cfg.SyscallProb != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Quantum != 500*time.Millisecond {
		t.Fatalf("Quantum = %v", cfg.Quantum)
	}
	if cfg.ReplySlotPath != "/tmp/replyslot-A2" {
		t.Fatalf("ReplySlotPath = %q", cfg.ReplySlotPath)
	}
}

func TestConfigFromEnv_MissingReplySlotPath(t *testing.T) {
	t.Setenv(kernel.EnvAppID, "1")
	t.Setenv(kernel.EnvQuantumMillis, "500")
	t.Setenv(kernel.EnvMaxPC, "10")
	t.Setenv(kernel.EnvSyscallProb, "3")
	os.Unsetenv(kernel.EnvReplySlotPath)

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing reply slot path")
	}
}

func TestBuildSyscallLine_ParsesAsEveryVerb(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seenVerbs := map[string]bool{}

	for i := 0; i < 200 && len(seenVerbs) < 5; i++ {
		line := buildSyscallLine(3, 4242, rng)
		ev, err := kernel.ParseAppLine(line)
		if err != nil {
			t.Fatalf("ParseAppLine(%q): %v", line, err)
		}
		if ev.Kind != kernel.EventSyscall {
			t.Fatalf("line %q parsed as non-syscall event", line)
		}
		if ev.AppID != 3 {
			t.Fatalf("line %q parsed AppID = %d, want 3", line, ev.AppID)
		}
		seenVerbs[ev.Request.Type.String()] = true
	}

	for _, want := range []string{"RD_REQ", "WR_REQ", "DC_REQ", "DR_REQ", "DL_REQ"} {
		if !seenVerbs[want] {
			t.Errorf("never observed verb %s over 200 draws", want)
		}
	}
}

func TestBuildSyscallLine_OffsetIsBlockAligned(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		line := buildSyscallLine(1, 10, rng)
		ev, err := kernel.ParseAppLine(line)
		if err != nil {
			t.Fatalf("ParseAppLine: %v", err)
		}
		if ev.Request.Offset%sfp.BlockSize != 0 {
			t.Fatalf("offset %d not aligned to %d", ev.Request.Offset, sfp.BlockSize)
		}
	}
}

func TestOwnerPrefix_AlternatesBetweenPrivateAndShared(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[ownerPrefix(5, rng)] = true
	}
	if !seen["/A5"] || !seen["/A0"] {
		t.Fatalf("expected both /A5 and /A0 over 50 draws, got %v", seen)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status int32
		want   string
	}{
		{sfp.StatusOK, "ok"},
		{sfp.StatusPermission, "permission"},
		{sfp.StatusNotFound, "not_found"},
		{sfp.StatusOffsetOOB, "offset_oob"},
		{sfp.StatusIO, "io"},
		{sfp.StatusUnknownRequest, "unknown_request"},
	}
	for _, tc := range cases {
		reply := sfp.ReadRequest(1, "/A1/f", 0).WithStatus(tc.status)
		if got := classify(reply); got != tc.want {
			t.Errorf("classify(status=%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

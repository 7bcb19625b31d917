// Package appproc implements the application child process of spec §4.3:
// a bounded tick loop that occasionally issues a file-system syscall line
// and blocks until the kernel delivers a reply in its shared reply slot.
package appproc

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"syscall"
	"time"

	kerrors "kernelsim/errors"
	"kernelsim/ipc"
	"kernelsim/kernel"
	"kernelsim/sfp"
)

// Config carries one application's run parameters, read from the
// environment by the kernelsim "app <id>" subcommand (cmd/app.go).
type Config struct {
	AppID         int
	Quantum       time.Duration
	MaxPC         int
	SyscallProb   int
	ReplySlotPath string
}

// ConfigFromEnv reads Config from the environment variables kernel.SpawnApp
// sets.
func ConfigFromEnv() (Config, error) {
	id, err := strconv.Atoi(os.Getenv(kernel.EnvAppID))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "appproc: parse app id")
	}
	ms, err := strconv.Atoi(os.Getenv(kernel.EnvQuantumMillis))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "appproc: parse quantum")
	}
	maxPC, err := strconv.Atoi(os.Getenv(kernel.EnvMaxPC))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "appproc: parse max pc")
	}
	prob, err := strconv.Atoi(os.Getenv(kernel.EnvSyscallProb))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "appproc: parse syscall prob")
	}
	path := os.Getenv(kernel.EnvReplySlotPath)
	if path == "" {
		return Config{}, kerrors.New(kerrors.ErrInvalidConfig, "appproc: parse reply slot path", "empty path")
	}
	return Config{
		AppID:         id,
		Quantum:       time.Duration(ms) * time.Millisecond,
		MaxPC:         maxPC,
		SyscallProb:   prob,
		ReplySlotPath: path,
	}, nil
}

// Run opens the shared reply slot, signals readiness, self-stops so the
// supervisor controls the first CONT, then loops up to MaxPC ticks. Each
// tick emits a TICK line; with probability 1/SyscallProb it also emits one
// syscall line, self-stops again, and (once resumed) reads and classifies
// the reply waiting in its slot. After the loop it emits DONE, detaches its
// reply slot, and returns.
func Run(out io.Writer, cfg Config, rng *rand.Rand, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	slot, err := ipc.OpenReplySlot(cfg.ReplySlotPath)
	if err != nil {
		return err
	}
	defer slot.Close()

	if err := signalReady(); err != nil {
		return err
	}
	if err := selfStop(); err != nil {
		return err
	}

	pid := os.Getpid()
	pc := 0
	for pc < cfg.MaxPC {
		time.Sleep(cfg.Quantum)
		pc++
		if _, err := fmt.Fprintf(out, "TICK A%d %d %d\n", cfg.AppID, pid, pc); err != nil {
			return kerrors.Wrap(err, kerrors.ErrTransient, "appproc: write TICK")
		}

		if cfg.SyscallProb > 0 && rng.Intn(cfg.SyscallProb) == 0 {
			line := buildSyscallLine(cfg.AppID, pid, rng)
			if _, err := fmt.Fprintln(out, line); err != nil {
				return kerrors.Wrap(err, kerrors.ErrTransient, "appproc: write syscall line")
			}
			if err := selfStop(); err != nil {
				return err
			}
			reply, err := slot.ReadMessage()
			if err != nil {
				log.Warn("failed to decode reply slot", "app", cfg.AppID, "err", err)
			} else {
				log.Debug("syscall reply", "app", cfg.AppID, "type", reply.Type, "outcome", classify(reply))
			}
		}
	}

	if _, err := fmt.Fprintf(out, "DONE A%d %d %d\n", cfg.AppID, pid, pc); err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "appproc: write DONE")
	}
	return nil
}

// classify turns a reply's tagged status field into a short label for
// logging, per spec §4.3's "classifies the outcome by msg_type and status".
func classify(reply sfp.Message) string {
	switch reply.Status() {
	case sfp.StatusOK:
		return "ok"
	case sfp.StatusPermission:
		return "permission"
	case sfp.StatusNotFound:
		return "not_found"
	case sfp.StatusOffsetOOB:
		return "offset_oob"
	case sfp.StatusIO:
		return "io"
	case sfp.StatusUnknownRequest:
		return "unknown_request"
	default:
		return "unrecognized_status"
	}
}

// buildSyscallLine picks one of the five syscall verbs uniformly, an
// owner-prefix path alternating between the app's private prefix and the
// shared /A0 prefix, an offset aligned to sfp.BlockSize, and (for WRITE) a
// short payload, per spec §4.3.
func buildSyscallLine(id, pid int, rng *rand.Rand) string {
	prefix := ownerPrefix(id, rng)
	offset := rng.Intn(16) * sfp.BlockSize

	switch rng.Intn(5) {
	case 0:
		return fmt.Sprintf("READ A%d %d %s/data %d", id, pid, prefix, offset)
	case 1:
		return fmt.Sprintf("WRITE A%d %d %s/data %d %s", id, pid, prefix, offset, randomPayload(rng))
	case 2:
		return fmt.Sprintf("ADD A%d %d %s %s", id, pid, prefix, randomName(rng))
	case 3:
		return fmt.Sprintf("REM A%d %d %s %s", id, pid, prefix, randomName(rng))
	default:
		return fmt.Sprintf("LISTDIR A%d %d %s", id, pid, prefix)
	}
}

// ownerPrefix alternates uniformly between the app's own directory and the
// shared /A0 directory, exercising both halves of SFSS's permission check.
func ownerPrefix(id int, rng *rand.Rand) string {
	if rng.Intn(2) == 0 {
		return fmt.Sprintf("/A%d", id)
	}
	return "/A0"
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomName(rng *rand.Rand) string {
	n := 3 + rng.Intn(5)
	b := make([]byte, n)
	for i := range b {
		b[i] = nameAlphabet[rng.Intn(len(nameAlphabet))]
	}
	return string(b)
}

func randomPayload(rng *rand.Rand) string {
	n := 1 + rng.Intn(sfp.BlockSize-1)
	b := make([]byte, n)
	for i := range b {
		b[i] = nameAlphabet[rng.Intn(len(nameAlphabet))]
	}
	return string(b)
}

func signalReady() error {
	f := ipc.OpenReadyFile()
	defer f.Close()
	return ipc.Signal(f)
}

func selfStop() error {
	if err := syscall.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
		return kerrors.Wrap(err, kerrors.ErrLifecycle, "appproc: self-stop")
	}
	return nil
}

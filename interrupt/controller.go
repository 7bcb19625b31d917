// Package interrupt implements the interrupt controller child process of
// spec §4.2: a single-threaded paced loop that emits IRQ0 every quantum
// and probabilistically piggybacks IRQ1/IRQ2 on top of it.
package interrupt

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"syscall"
	"time"

	kerrors "kernelsim/errors"
	"kernelsim/ipc"
	"kernelsim/kernel"
)

// Config carries the IC's tick parameters, read from the environment by
// the kernelsim "inter" subcommand (cmd/inter.go).
type Config struct {
	Quantum time.Duration
	P1      int
	P2      int
}

// ConfigFromEnv reads Config from the environment variables the supervisor
// sets in kernel.SpawnIC.
func ConfigFromEnv() (Config, error) {
	ms, err := strconv.Atoi(os.Getenv(kernel.EnvQuantumMillis))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "interrupt: parse quantum")
	}
	p1, err := strconv.Atoi(os.Getenv(kernel.EnvP1))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "interrupt: parse p1")
	}
	p2, err := strconv.Atoi(os.Getenv(kernel.EnvP2))
	if err != nil {
		return Config{}, kerrors.Wrap(err, kerrors.ErrInvalidConfig, "interrupt: parse p2")
	}
	return Config{Quantum: time.Duration(ms) * time.Millisecond, P1: p1, P2: p2}, nil
}

// Run signals readiness, self-stops so the supervisor controls the first
// CONT, then loops forever: each tick sleeps one quantum and writes IRQ0,
// followed by IRQ1 with probability 1/P1 and IRQ2 with probability 1/P2.
// It never returns on its own; the supervisor terminates it at full
// shutdown (spec §4.1).
func Run(out io.Writer, cfg Config, rng *rand.Rand) error {
	if err := signalReady(); err != nil {
		return err
	}
	if err := selfStop(); err != nil {
		return err
	}

	for {
		time.Sleep(cfg.Quantum)
		if err := tick(out, cfg, rng); err != nil {
			return err
		}
	}
}

// tick emits one IRQ0 and its probabilistic IRQ1/IRQ2 piggybacks. Split out
// of Run so the emission logic can be tested without a real quantum sleep.
func tick(out io.Writer, cfg Config, rng *rand.Rand) error {
	if _, err := fmt.Fprintln(out, "IRQ0"); err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "interrupt: write IRQ0")
	}
	if cfg.P1 > 0 && rng.Intn(cfg.P1) == 0 {
		if _, err := fmt.Fprintln(out, "IRQ1"); err != nil {
			return kerrors.Wrap(err, kerrors.ErrTransient, "interrupt: write IRQ1")
		}
	}
	if cfg.P2 > 0 && rng.Intn(cfg.P2) == 0 {
		if _, err := fmt.Fprintln(out, "IRQ2"); err != nil {
			return kerrors.Wrap(err, kerrors.ErrTransient, "interrupt: write IRQ2")
		}
	}
	return nil
}

func signalReady() error {
	f := ipc.OpenReadyFile()
	defer f.Close()
	return ipc.Signal(f)
}

func selfStop() error {
	if err := syscall.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
		return kerrors.Wrap(err, kerrors.ErrLifecycle, "interrupt: self-stop")
	}
	return nil
}

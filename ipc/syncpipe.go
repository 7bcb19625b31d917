// Package ipc implements the shared reply slot and the parent-child
// startup handshake used to synchronize the kernel supervisor with its
// re-exec'd children.
package ipc

import (
	"fmt"
	"os"
	"syscall"

	kerrors "kernelsim/errors"
)

// SyncPipe is a pipe used for parent-child synchronization, adapted from
// the teacher's container init handshake: the parent blocks reading a
// single byte that the child writes once it has reached a known state.
// Here it confirms a newly spawned child has attached its shared reply
// slot (or, for the interrupt controller, has nothing to attach and
// signals immediately) before the supervisor includes it in scheduling.
type SyncPipe struct {
	parent *os.File
	child  *os.File
}

// NewSyncPipe creates a new synchronization pipe.
func NewSyncPipe() (*SyncPipe, error) {
	fds := make([]int, 2)
	if err := syscall.Pipe(fds); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: create sync pipe")
	}
	return &SyncPipe{
		parent: os.NewFile(uintptr(fds[0]), "syncpipe-parent"),
		child:  os.NewFile(uintptr(fds[1]), "syncpipe-child"),
	}, nil
}

// ParentFile returns the parent (reading) end of the pipe.
func (s *SyncPipe) ParentFile() *os.File {
	return s.parent
}

// ChildFile returns the child (writing) end of the pipe, meant to be
// inherited by a spawned child via exec.Cmd.ExtraFiles.
func (s *SyncPipe) ChildFile() *os.File {
	return s.child
}

// CloseParent closes the parent end of the pipe.
func (s *SyncPipe) CloseParent() error {
	if s.parent != nil {
		return s.parent.Close()
	}
	return nil
}

// CloseChild closes the child end of the pipe. The supervisor calls this
// in its own process immediately after spawning, since the child's copy
// of the fd (inherited across exec) keeps it open on the child's side.
func (s *SyncPipe) CloseChild() error {
	if s.child != nil {
		return s.child.Close()
	}
	return nil
}

// Close closes both ends of the pipe.
func (s *SyncPipe) Close() {
	s.CloseParent()
	s.CloseChild()
}

// Wait blocks reading a single ready byte on the parent end.
func (s *SyncPipe) Wait() error {
	buf := make([]byte, 1)
	_, err := s.parent.Read(buf)
	if err != nil {
		return kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: wait for child ready")
	}
	return nil
}

// Signal sends the ready byte on the child end. Called from inside the
// spawned child process after opening fd ReadyFD.
func Signal(f *os.File) error {
	if _, err := f.Write([]byte{0}); err != nil {
		return kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: signal ready")
	}
	return nil
}

// ReadyFDEnv names the environment variable the supervisor sets to the
// inherited ready descriptor's number (fd 3, the first entry of
// exec.Cmd.ExtraFiles). Children do not read it: OpenReadyFile uses the
// fixed ReadyFD.
const ReadyFDEnv = "_KERNELSIM_READY_FD"

// ReadyFD is the fixed descriptor number children use, matching
// ExtraFiles[0]'s position immediately after stdin/stdout/stderr.
const ReadyFD = 3

// OpenReadyFile wraps the inherited ready descriptor as an *os.File for
// a spawned child to call Signal on.
func OpenReadyFile() *os.File {
	return os.NewFile(uintptr(ReadyFD), fmt.Sprintf("fd%d", ReadyFD))
}

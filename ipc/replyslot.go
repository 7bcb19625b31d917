package ipc

import (
	"os"

	"golang.org/x/sys/unix"

	kerrors "kernelsim/errors"
	"kernelsim/sfp"
)

// ReplySlot is one application's shared reply mailbox (spec §3): a
// single SFP-message-sized region backed by a file and mapped MAP_SHARED,
// so the kernel supervisor (writer) and the corresponding app process
// (reader) see the same bytes across the exec boundary without any IPC
// channel. Ownership is temporally disjoint (writer only while the app is
// BLOCKED, reader only between resume and its next syscall), so no
// locking is needed here — only the file-backed mmap plumbing.
type ReplySlot struct {
	file *os.File
	data []byte
}

// CreateReplySlot creates (or truncates) the backing file at path, sizes
// it to one SFP record, and maps it read-write. Called by the supervisor
// before spawning the owning app.
func CreateReplySlot(path string) (*ReplySlot, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: create reply slot file")
	}
	if err := f.Truncate(int64(sfp.Size)); err != nil {
		f.Close()
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: size reply slot file")
	}
	return mapSlot(f, unix.PROT_READ|unix.PROT_WRITE)
}

// OpenReplySlot opens an existing reply slot file read-write and maps it.
// Called from inside the app process after it re-execs, using the path the
// supervisor passed it in the kernel.EnvReplySlotPath environment variable.
func OpenReplySlot(path string) (*ReplySlot, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: open reply slot file")
	}
	return mapSlot(f, unix.PROT_READ|unix.PROT_WRITE)
}

func mapSlot(f *os.File, prot int) (*ReplySlot, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, sfp.Size, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: mmap reply slot")
	}
	return &ReplySlot{file: f, data: data}, nil
}

// WriteMessage encodes msg and copies it into the mapped region. Callers
// must ensure the owning app is currently BLOCKED (the kernel's
// scheduler enforces this before calling Write).
func (s *ReplySlot) WriteMessage(msg sfp.Message) error {
	encoded, err := sfp.Encode(msg)
	if err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "ipc: encode reply for slot")
	}
	copy(s.data, encoded)
	return nil
}

// ReadMessage decodes the message currently in the mapped region.
func (s *ReplySlot) ReadMessage() (sfp.Message, error) {
	return sfp.Decode(s.data)
}

// Close unmaps the region and closes the backing file.
func (s *ReplySlot) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "ipc: munmap reply slot")
	}
	return s.file.Close()
}

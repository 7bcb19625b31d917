package ipc

import (
	"fmt"
	"os"
	"path/filepath"

	kerrors "kernelsim/errors"
	"kernelsim/sfp"
)

// ReplySlotSet owns one ReplySlot per application, created once at
// supervisor startup, and satisfies kernel.ReplySlotWriter by structural
// typing (kernel never imports ipc directly, to keep the dependency
// one-directional).
type ReplySlotSet struct {
	dir   string
	slots []*ReplySlot
}

// NewReplySlotSet creates dir if needed and a backing ReplySlot file for
// each of n applications.
func NewReplySlotSet(dir string, n int) (*ReplySlotSet, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "ipc: create reply slot dir")
	}

	set := &ReplySlotSet{dir: dir, slots: make([]*ReplySlot, n)}
	for id := 1; id <= n; id++ {
		slot, err := CreateReplySlot(set.Path(id))
		if err != nil {
			set.Close()
			return nil, err
		}
		set.slots[id-1] = slot
	}
	return set, nil
}

// Path returns the backing file path for an application's reply slot,
// passed to the child so it can open the same file.
func (s *ReplySlotSet) Path(appID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("replyslot-A%d", appID))
}

// Write implements kernel.ReplySlotWriter: copy msg into appID's slot.
func (s *ReplySlotSet) Write(appID int, msg sfp.Message) error {
	if appID < 1 || appID > len(s.slots) {
		return kerrors.WrapWithSubject(kerrors.ErrOwnerOutOfRange, kerrors.ErrProtocol, "ipc: write reply slot", fmt.Sprintf("A%d", appID))
	}
	return s.slots[appID-1].WriteMessage(msg)
}

// Close unmaps and closes every slot in the set.
func (s *ReplySlotSet) Close() error {
	var firstErr error
	for _, slot := range s.slots {
		if slot == nil {
			continue
		}
		if err := slot.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

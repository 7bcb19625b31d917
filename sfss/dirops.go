package sfss

import (
	"os"
	"path/filepath"

	"kernelsim/sfp"
)

// HandleCreate implements DC_REQ -> DC_REP.
func HandleCreate(root string, req sfp.Message) sfp.Message {
	combined := req.Path + "/" + req.Name
	full := filepath.Join(root, combined)

	if err := os.Mkdir(full, 0755); err != nil {
		reply := req.WithStatus(sfp.StatusIO)
		return reply
	}

	reply := req.WithStatus(int32(len(combined)))
	reply.Path = combined
	return reply
}

// HandleRemove implements DR_REQ -> DR_REP. On Unix, os.Remove already
// tries unlink and falls back to rmdir when the target is a directory,
// matching spec §4.5's "attempt unlink; if that fails attempt rmdir" in
// one call, so the same operation removes both files and empty
// directories.
func HandleRemove(root string, req sfp.Message) sfp.Message {
	combined := req.Path + "/" + req.Name
	full := filepath.Join(root, combined)

	if err := os.Remove(full); err != nil {
		reply := req.WithStatus(sfp.StatusIO)
		reply.Path = req.Path
		return reply
	}

	reply := req.WithStatus(int32(len(req.Path)))
	reply.Path = req.Path
	return reply
}

// HandleList implements DL_REQ -> DL_REP, bounded to MaxNames entries and
// ListBufSize total name bytes.
func HandleList(root string, req sfp.Message) sfp.Message {
	full := filepath.Join(root, req.Path)

	entries, err := os.ReadDir(full)
	if err != nil {
		return req.WithStatus(sfp.StatusNotFound)
	}

	var out []sfp.DirEntry
	nameBytes := 0
	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		if len(out) >= sfp.MaxNames {
			break
		}
		if nameBytes+len(name) > sfp.ListBufSize {
			break
		}
		nameBytes += len(name)
		out = append(out, sfp.DirEntry{Name: name, IsDir: e.IsDir()})
	}

	reply := req.WithStatus(int32(len(out)))
	reply.Entries = out
	return reply
}

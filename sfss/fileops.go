package sfss

import (
	"io"
	"os"
	"path/filepath"

	"kernelsim/sfp"
)

// padByte is used to sparse-fill the gap when a write lands past the
// current end of file (spec §4.5: "extend the file by writing the byte
// value 0x20 (space)").
const padByte = 0x20

// HandleRead implements RD_REQ -> RD_REP.
func HandleRead(root string, req sfp.Message) sfp.Message {
	path := filepath.Join(root, req.Path)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return req.WithStatus(sfp.StatusNotFound)
		}
		return req.WithStatus(sfp.StatusIO)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return req.WithStatus(sfp.StatusIO)
	}
	size := info.Size()

	offset := int64(req.Offset)
	emptyFileAtZero := size == 0 && offset == 0
	if offset >= size && !emptyFileAtZero {
		return req.WithStatus(sfp.StatusOffsetOOB)
	}

	var payload [sfp.BlockSize]byte
	if !emptyFileAtZero {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return req.WithStatus(sfp.StatusIO)
		}
		n, err := f.Read(payload[:])
		if err != nil && err != io.EOF {
			return req.WithStatus(sfp.StatusIO)
		}
		_ = n // a short read leaves the remainder of payload zero-filled
	}

	reply := req.WithStatus(int32(offset))
	reply.Payload = payload
	return reply
}

// HandleWrite implements WR_REQ -> WR_REP, including the file-remove
// sentinel (offset=0, payload[0]=0) and sparse-hole fill on a write past
// end of file.
func HandleWrite(root string, req sfp.Message) sfp.Message {
	path := filepath.Join(root, req.Path)

	if req.Offset == 0 && req.Payload[0] == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return req.WithStatus(sfp.StatusIO)
		}
		return req.WithStatus(sfp.StatusOK)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return req.WithStatus(sfp.StatusIO)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return req.WithStatus(sfp.StatusIO)
	}
	size := info.Size()
	offset := int64(req.Offset)

	if offset > size {
		if err := sparseFill(f, size, offset); err != nil {
			return req.WithStatus(sfp.StatusIO)
		}
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return req.WithStatus(sfp.StatusIO)
	}
	if _, err := f.Write(req.Payload[:]); err != nil {
		return req.WithStatus(sfp.StatusIO)
	}

	return req.WithStatus(sfp.StatusOK)
}

// sparseFill pads the gap [from, to) with padByte so the file reaches at
// least size to before the caller's write lands at offset to.
func sparseFill(f *os.File, from, to int64) error {
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return err
	}
	remaining := to - from
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = padByte
	}
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

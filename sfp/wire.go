package sfp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	kerrors "kernelsim/errors"
)

// wireDirent is the on-the-wire shape of one fstlst[] entry: indices into
// the concatenated allfilenames buffer plus a directory flag.
type wireDirent struct {
	Start int32
	End   int32
	IsDir int32
}

// wireRecord is the exact byte layout of one SFP datagram. Every request
// and reply uses this same fixed-size record; Message is the friendlier
// view callers actually work with.
type wireRecord struct {
	MsgType      int32
	Owner        int32
	PathLen      int32
	Path         [MaxPath]byte
	NameLen      int32
	Name         [MaxPath]byte
	Offset       int32
	Payload      [BlockSize]byte
	NRNames      int32
	FstLst       [MaxNames]wireDirent
	AllFileNames [ListBufSize]byte
}

// Size is the fixed size in bytes of one SFP datagram.
var Size = binary.Size(wireRecord{})

// Encode serializes a Message into its fixed-size wire form.
func Encode(m Message) ([]byte, error) {
	if len(m.Path) > MaxPath {
		return nil, fmt.Errorf("sfp: path too long (%d > %d)", len(m.Path), MaxPath)
	}
	if len(m.Name) > MaxPath {
		return nil, fmt.Errorf("sfp: name too long (%d > %d)", len(m.Name), MaxPath)
	}

	var w wireRecord
	w.MsgType = int32(m.Type)
	w.Owner = m.Owner
	copy(w.Path[:], m.Path)
	copy(w.Name[:], m.Name)
	w.NameLen = int32(len(m.Name))
	w.Offset = m.Offset
	w.Payload = m.Payload

	switch m.Type {
	case DcRep, DrRep:
		w.PathLen = m.PathStatus
	default:
		w.PathLen = int32(len(m.Path))
	}

	if m.Type == DlRep {
		w.NRNames = m.NRNames
		if !IsError(m.NRNames) {
			cursor := 0
			for i, e := range m.Entries {
				if i >= MaxNames {
					return nil, fmt.Errorf("sfp: too many directory entries (%d > %d)", len(m.Entries), MaxNames)
				}
				end := cursor + len(e.Name)
				if end > ListBufSize {
					return nil, fmt.Errorf("sfp: name buffer overflow at entry %d", i)
				}
				copy(w.AllFileNames[cursor:end], e.Name)
				w.FstLst[i] = wireDirent{Start: int32(cursor), End: int32(end)}
				if e.IsDir {
					w.FstLst[i].IsDir = 1
				}
				cursor = end
			}
		}
	}

	buf := new(bytes.Buffer)
	buf.Grow(Size)
	if err := binary.Write(buf, binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("sfp: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a fixed-size wire record into a Message. It returns a
// *kerrors.KernelError of kind ErrInvalidConfig on malformed input, since a
// bad datagram is a parse-time problem rather than a protocol-level one.
func Decode(data []byte) (Message, error) {
	if len(data) < Size {
		return Message{}, kerrors.WrapWithDetail(nil, kerrors.ErrInvalidConfig, "sfp decode",
			fmt.Sprintf("short datagram: got %d bytes, want %d", len(data), Size))
	}

	var w wireRecord
	if err := binary.Read(bytes.NewReader(data[:Size]), binary.LittleEndian, &w); err != nil {
		return Message{}, kerrors.WrapWithDetail(err, kerrors.ErrInvalidConfig, "sfp decode", "malformed record")
	}

	mt := MsgType(w.MsgType)
	if mt < RdReq || mt > DlRep {
		return Message{}, kerrors.WrapWithDetail(nil, kerrors.ErrInvalidConfig, "sfp decode",
			fmt.Sprintf("unrecognized msg_type %d", w.MsgType))
	}

	m := Message{
		Type:       mt,
		Owner:      w.Owner,
		Path:       cString(w.Path[:]),
		Name:       cString(w.Name[:]),
		Offset:     w.Offset,
		Payload:    w.Payload,
		PathStatus: w.PathLen,
		NRNames:    w.NRNames,
	}

	if mt == DlRep && !IsError(w.NRNames) {
		n := int(w.NRNames)
		if n > MaxNames {
			n = MaxNames
		}
		m.Entries = make([]DirEntry, 0, n)
		for i := 0; i < n; i++ {
			e := w.FstLst[i]
			if e.Start < 0 || e.End < e.Start || int(e.End) > len(w.AllFileNames) {
				continue
			}
			m.Entries = append(m.Entries, DirEntry{
				Name:  string(w.AllFileNames[e.Start:e.End]),
				IsDir: e.IsDir != 0,
			})
		}
	}

	return m, nil
}

// cString returns the string up to the first NUL byte in b, or the whole
// slice if there is none.
func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		return string(b[:idx])
	}
	return string(b)
}

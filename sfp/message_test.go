package sfp

import "testing"

func TestMsgType_Reply(t *testing.T) {
	tests := []struct {
		req  MsgType
		want MsgType
	}{
		{RdReq, RdRep},
		{WrReq, WrRep},
		{DcReq, DcRep},
		{DrReq, DrRep},
		{DlReq, DlRep},
	}
	for _, tt := range tests {
		if got := tt.req.Reply(); got != tt.want {
			t.Errorf("%v.Reply() = %v, want %v", tt.req, got, tt.want)
		}
	}
}

func TestMsgType_ReplyPanicsOnReplyType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic calling Reply() on a reply type")
		}
	}()
	RdRep.Reply()
}

func TestMsgType_FIFOClassification(t *testing.T) {
	if !RdRep.IsFileReply() || !WrRep.IsFileReply() {
		t.Error("RD_REP and WR_REP should be file replies")
	}
	if RdRep.IsDirReply() {
		t.Error("RD_REP should not be a directory reply")
	}
	if !DcRep.IsDirReply() || !DrRep.IsDirReply() || !DlRep.IsDirReply() {
		t.Error("DC_REP, DR_REP, DL_REP should be directory replies")
	}
}

func TestWithStatus_RoundTrip(t *testing.T) {
	req := ReadRequest(3, "/A3/file.txt", 0)
	rep := req.WithStatus(StatusOK)

	if rep.Type != RdRep {
		t.Fatalf("Type = %v, want RD_REP", rep.Type)
	}
	if rep.Status() != StatusOK {
		t.Errorf("Status() = %d, want %d", rep.Status(), StatusOK)
	}
	if rep.Failed() {
		t.Error("Failed() should be false for StatusOK")
	}

	denied := req.WithStatus(StatusPermission)
	if !denied.Failed() {
		t.Error("Failed() should be true for StatusPermission")
	}
	if denied.Status() != StatusPermission {
		t.Errorf("Status() = %d, want %d", denied.Status(), StatusPermission)
	}
}

func TestWithStatus_TaggedFieldPerKind(t *testing.T) {
	dc := CreateRequest(4, "/A4", "sub").WithStatus(StatusIO)
	if dc.PathStatus != StatusIO {
		t.Errorf("DC_REP PathStatus = %d, want %d", dc.PathStatus, StatusIO)
	}

	dl := ListRequest(4, "/A4").WithStatus(StatusNotFound)
	if dl.NRNames != StatusNotFound {
		t.Errorf("DL_REP NRNames = %d, want %d", dl.NRNames, StatusNotFound)
	}
}

func TestEncodeDecode_ReadWrite(t *testing.T) {
	var payload [BlockSize]byte
	copy(payload[:], "Hello")

	req := WriteRequest(1, "/A1/file.txt", 0, payload)
	data, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != Size {
		t.Fatalf("encoded length = %d, want %d", len(data), Size)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != WrReq || got.Owner != 1 || got.Path != "/A1/file.txt" || got.Offset != 0 {
		t.Errorf("decoded = %+v, want request echoed back", got)
	}
	if got.Payload != payload {
		t.Errorf("payload mismatch: got %v want %v", got.Payload, payload)
	}
}

func TestEncodeDecode_DirectoryListing(t *testing.T) {
	rep := ListRequest(2, "/A2").WithStatus(2)
	rep.Entries = []DirEntry{
		{Name: "sub", IsDir: true},
		{Name: "note.txt", IsDir: false},
	}
	rep.NRNames = int32(len(rep.Entries))

	data, err := Encode(rep)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.NRNames != 2 || len(got.Entries) != 2 {
		t.Fatalf("got %+v, want 2 entries", got)
	}
	if got.Entries[0].Name != "sub" || !got.Entries[0].IsDir {
		t.Errorf("entry 0 = %+v, want sub (dir)", got.Entries[0])
	}
	if got.Entries[1].Name != "note.txt" || got.Entries[1].IsDir {
		t.Errorf("entry 1 = %+v, want note.txt (file)", got.Entries[1])
	}
}

func TestDecode_ShortDatagram(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err == nil {
		t.Error("expected error decoding a short datagram")
	}
}

func TestDecode_UnknownMsgType(t *testing.T) {
	data, err := Encode(ReadRequest(1, "/A1", 0))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[0] = 255 // corrupt msg_type (little-endian low byte)
	_, err = Decode(data)
	if err == nil {
		t.Error("expected error decoding an unrecognized msg_type")
	}
}

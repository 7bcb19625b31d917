package sfss

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	kerrors "kernelsim/errors"
	"kernelsim/sfp"
)

// datagramBufSize is large enough for the largest SFP record (a full
// DL_REP listing), with slack for alignment padding.
const datagramBufSize = 4096

// DefaultPort is the fixed UDP port SFSS binds per spec §4.5.
const DefaultPort = 8888

// Server is the stateless, single-threaded SFSS datagram server: for
// every incoming SFP record it checks permission, dispatches by msg_type,
// and replies to the request's source address.
type Server struct {
	root string
	conn *net.UDPConn
	log  *slog.Logger
}

// NewServer precreates the A0..AN owner directories (the spec's "root
// directory with child directories A0..AN precreated") and binds the UDP
// socket.
func NewServer(root string, n int, port int, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "sfss: create root")
	}
	for owner := 0; owner <= n; owner++ {
		dir := filepath.Join(root, fmt.Sprintf("A%d", owner))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, kerrors.WrapWithSubject(err, kerrors.ErrLifecycle, "sfss: create owner dir", dir)
		}
	}

	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "sfss: bind udp")
	}

	return &Server{root: root, conn: conn, log: log}, nil
}

// Close releases the UDP socket.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Serve loops reading, handling, and replying to SFP datagrams until ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, datagramBufSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("sfss: read failed", "err", err)
			continue
		}

		req, err := sfp.Decode(buf[:n])
		if err != nil {
			s.log.Warn("sfss: dropping malformed datagram", "from", addr, "err", err)
			continue
		}

		reply := s.handle(req)
		if !req.Type.IsRequest() {
			continue
		}

		data, err := sfp.Encode(reply)
		if err != nil {
			s.log.Warn("sfss: failed to encode reply", "msg_type", reply.Type.String(), "err", err)
			continue
		}
		if _, err := s.conn.WriteToUDP(data, addr); err != nil {
			s.log.Warn("sfss: failed to send reply", "to", addr, "err", err)
		}
	}
}

// handle implements the per-datagram pipeline of spec §4.5: permission
// check, dispatch by msg_type, and reply construction.
func (s *Server) handle(req sfp.Message) sfp.Message {
	if !req.Type.IsRequest() {
		s.log.Warn("sfss: dropping non-request msg_type", "msg_type", req.Type.String())
		return req
	}

	if !CheckOwnerPrefix(req.Owner, req.Path) {
		return req.WithStatus(sfp.StatusPermission)
	}

	switch req.Type {
	case sfp.RdReq:
		return HandleRead(s.root, req)
	case sfp.WrReq:
		return HandleWrite(s.root, req)
	case sfp.DcReq:
		return HandleCreate(s.root, req)
	case sfp.DrReq:
		return HandleRemove(s.root, req)
	case sfp.DlReq:
		return HandleList(s.root, req)
	default:
		s.log.Warn("sfss: unknown request type", "msg_type", req.Type.String())
		return req.WithStatus(sfp.StatusUnknownRequest)
	}
}

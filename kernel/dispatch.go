package kernel

import (
	"log/slog"
	"net"

	kerrors "kernelsim/errors"
	"kernelsim/sfp"
)

// ReplySlotWriter copies a reply message into an application's shared
// reply slot. It is satisfied by ipc.ReplySlotSet; kernel depends only on
// this narrow interface so it never imports the ipc package.
type ReplySlotWriter interface {
	Write(appID int, msg sfp.Message) error
}

// DatagramSender transmits one SFP request datagram to SFSS. Send
// failures are transient per spec §7 (logged, not fatal).
type DatagramSender interface {
	Send(msg sfp.Message) error
}

// UDPSender is the concrete DatagramSender: a connected UDP socket to the
// SFSS endpoint.
type UDPSender struct {
	conn *net.UDPConn
}

// DialSFSS opens a UDP socket connected to the SFSS endpoint.
func DialSFSS(addr string) (*UDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "resolve sfss address")
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrLifecycle, "dial sfss")
	}
	return &UDPSender{conn: conn}, nil
}

// Send encodes and writes one SFP request datagram.
func (u *UDPSender) Send(msg sfp.Message) error {
	data, err := sfp.Encode(msg)
	if err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "encode sfp request")
	}
	if _, err := u.conn.Write(data); err != nil {
		return kerrors.Wrap(err, kerrors.ErrTransient, "send sfp datagram")
	}
	return nil
}

// ReadReply blocks for one incoming SFP reply datagram and decodes it.
func (u *UDPSender) ReadReply(buf []byte) (sfp.Message, error) {
	n, err := u.conn.Read(buf)
	if err != nil {
		return sfp.Message{}, kerrors.Wrap(err, kerrors.ErrTransient, "read sfp datagram")
	}
	msg, err := sfp.Decode(buf[:n])
	if err != nil {
		return sfp.Message{}, kerrors.Wrap(err, kerrors.ErrTransient, "decode sfp datagram")
	}
	return msg, nil
}

// Close releases the socket.
func (u *UDPSender) Close() error {
	return u.conn.Close()
}

// Dispatcher wires the scheduler, the two reply FIFOs, the datagram
// sender, and the shared reply slots together, implementing the syscall
// path and reply dispatch of spec §4.1.
type Dispatcher struct {
	sched       *Scheduler
	fileReplies *ReplyQueue
	dirReplies  *ReplyQueue
	sender      DatagramSender
	slots       ReplySlotWriter
	log         *slog.Logger
}

// NewDispatcher builds a Dispatcher over an already-constructed scheduler
// and reply queues.
func NewDispatcher(sched *Scheduler, fileReplies, dirReplies *ReplyQueue, sender DatagramSender, slots ReplySlotWriter, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sched:       sched,
		fileReplies: fileReplies,
		dirReplies:  dirReplies,
		sender:      sender,
		slots:       slots,
		log:         log,
	}
}

// HandleSyscall implements the syscall path: mark the PCB BLOCKED with the
// parsed request, ship the request to SFSS, and if the PCB was RUNNING,
// reschedule. It returns the newly RUNNING PCB (nil if now idle) so the
// caller can signal the corresponding child to continue.
func (d *Dispatcher) HandleSyscall(ev Event) *PCB {
	wasRunning := d.sched.Block(ev.AppID, ev.Request)

	if err := d.sender.Send(ev.Request); err != nil {
		d.log.Warn("sfp send failed", "app", ev.AppID, "msg_type", ev.Request.Type.String(), "err", err)
	}

	if !wasRunning {
		return nil
	}
	return d.sched.ScheduleNext()
}

// EnqueueReply classifies a decoded SFP reply into the file or directory
// FIFO per its message type. Overflow is logged and the reply dropped
// (spec §7's transient-operational treatment).
func (d *Dispatcher) EnqueueReply(msg sfp.Message) {
	var q *ReplyQueue
	switch {
	case msg.Type.IsFileReply():
		q = d.fileReplies
	case msg.Type.IsDirReply():
		q = d.dirReplies
	default:
		d.log.Warn("dropping reply of unexpected type", "msg_type", msg.Type.String())
		return
	}
	if err := q.Push(msg); err != nil {
		d.log.Warn("reply fifo overflow, dropping reply", "owner", msg.Owner, "msg_type", msg.Type.String())
	}
}

// HandleIRQ implements reply dispatch for IRQ1 (files) and IRQ2
// (directories): pop the corresponding FIFO head, resolve the owner, and
// if it is BLOCKED, copy the reply into its shared slot and unblock it.
// It returns the newly RUNNING PCB if a reschedule happened (nil
// otherwise, including the no-op/spurious-IRQ cases).
func (d *Dispatcher) HandleIRQ(irq IRQLine) *PCB {
	var q *ReplyQueue
	switch irq {
	case IRQ1:
		q = d.fileReplies
	case IRQ2:
		q = d.dirReplies
	default:
		return nil
	}

	msg, ok := q.Pop()
	if !ok {
		// Spurious IRQ finding an empty queue: silently dropped per spec §4.2.
		return nil
	}

	pcb, ok := d.sched.PCB(int(msg.Owner))
	if !ok {
		d.log.Warn("reply for owner out of range", "owner", msg.Owner, "msg_type", msg.Type.String())
		return nil
	}
	if pcb.State != Blocked {
		d.log.Warn("reply for non-blocked owner, dropping", "owner", msg.Owner, "state", pcb.State.String())
		return nil
	}

	if err := d.slots.Write(pcb.ID, msg); err != nil {
		d.log.Error("failed to write shared reply slot", "owner", pcb.ID, "err", err)
		return nil
	}

	if shouldSchedule := d.sched.Unblock(pcb.ID); shouldSchedule {
		return d.sched.ScheduleNext()
	}
	return nil
}

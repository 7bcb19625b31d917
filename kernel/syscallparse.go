package kernel

import (
	"strconv"
	"strings"

	kerrors "kernelsim/errors"
	"kernelsim/sfp"
)

// EventKind classifies one parsed app inbound line (spec §4.4).
type EventKind int

const (
	// EventTick corresponds to a TICK line: update PCB.PC only.
	EventTick EventKind = iota
	// EventDone corresponds to a DONE line: mark the PCB TERMINATED.
	EventDone
	// EventSyscall corresponds to one of READ/WRITE/ADD/REM/LISTDIR: the
	// issuing PCB blocks and Request is shipped to SFSS.
	EventSyscall
)

// Event is the parsed form of one app inbound line.
type Event struct {
	Kind    EventKind
	AppID   int
	Pid     int
	PC      int
	Request sfp.Message
}

// ParseAppLine parses one line received from an application child's
// stdout into an Event, per the grammar of spec §4.4. Unknown or
// malformed lines return a *kerrors.KernelError of kind ErrInvalidConfig
// that wraps the kerrors.ErrMalformedLine sentinel, so the supervisor can
// log and drop without blocking the PCB.
func ParseAppLine(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "ParseAppLine")
	}

	verb := fields[0]
	appID, err := parseAppID(fields[1])
	if err != nil {
		return Event{}, err
	}

	switch verb {
	case "TICK":
		return parseTickOrDone(EventTick, appID, fields)
	case "DONE":
		return parseTickOrDone(EventDone, appID, fields)
	case "READ":
		return parseRead(appID, fields)
	case "WRITE":
		return parseWrite(appID, fields)
	case "ADD":
		return parseAdd(appID, fields)
	case "REM":
		return parseRem(appID, fields)
	case "LISTDIR":
		return parseListdir(appID, fields)
	default:
		return Event{}, kerrors.WrapWithDetail(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "ParseAppLine", verb)
	}
}

// parseAppID parses the "A{id}" token common to every line.
func parseAppID(token string) (int, error) {
	if !strings.HasPrefix(token, "A") {
		return 0, kerrors.WrapWithDetail(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseAppID", token)
	}
	id, err := strconv.Atoi(token[1:])
	if err != nil {
		return 0, kerrors.WrapWithDetail(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseAppID", token)
	}
	return id, nil
}

// parseTickOrDone handles "TICK Aaid pid pc" and "DONE Aaid pid pc".
func parseTickOrDone(kind EventKind, appID int, fields []string) (Event, error) {
	if len(fields) != 4 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseTickOrDone")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseTickOrDone")
	}
	pc, err := strconv.Atoi(fields[3])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseTickOrDone")
	}
	return Event{Kind: kind, AppID: appID, Pid: pid, PC: pc}, nil
}

// parseRead handles "READ Aaid pid path offset".
func parseRead(appID int, fields []string) (Event, error) {
	if len(fields) != 5 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseRead")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseRead")
	}
	path := fields[3]
	offset, err := strconv.Atoi(fields[4])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseRead")
	}
	return Event{
		Kind:    EventSyscall,
		AppID:   appID,
		Pid:     pid,
		Request: sfp.ReadRequest(int32(appID), path, int32(offset)),
	}, nil
}

// parseWrite handles "WRITE Aaid pid path offset payload". payload is
// everything remaining on the line, truncated/padded to BlockSize bytes
// per spec §4.4.
func parseWrite(appID int, fields []string) (Event, error) {
	if len(fields) < 5 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseWrite")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseWrite")
	}
	path := fields[3]
	offset, err := strconv.Atoi(fields[4])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseWrite")
	}

	var payloadText string
	if len(fields) > 5 {
		payloadText = strings.Join(fields[5:], " ")
	}
	var payload [sfp.BlockSize]byte
	copy(payload[:], payloadText)

	return Event{
		Kind:    EventSyscall,
		AppID:   appID,
		Pid:     pid,
		Request: sfp.WriteRequest(int32(appID), path, int32(offset), payload),
	}, nil
}

// parseAdd handles "ADD Aaid pid path name".
func parseAdd(appID int, fields []string) (Event, error) {
	if len(fields) != 5 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseAdd")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseAdd")
	}
	return Event{
		Kind:    EventSyscall,
		AppID:   appID,
		Pid:     pid,
		Request: sfp.CreateRequest(int32(appID), fields[3], fields[4]),
	}, nil
}

// parseRem handles "REM Aaid pid path name".
func parseRem(appID int, fields []string) (Event, error) {
	if len(fields) != 5 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseRem")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseRem")
	}
	return Event{
		Kind:    EventSyscall,
		AppID:   appID,
		Pid:     pid,
		Request: sfp.RemoveRequest(int32(appID), fields[3], fields[4]),
	}, nil
}

// parseListdir handles "LISTDIR Aaid pid path".
func parseListdir(appID int, fields []string) (Event, error) {
	if len(fields) != 4 {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseListdir")
	}
	pid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Event{}, kerrors.Wrap(kerrors.ErrMalformedLine, kerrors.ErrInvalidConfig, "parseListdir")
	}
	return Event{
		Kind:    EventSyscall,
		AppID:   appID,
		Pid:     pid,
		Request: sfp.ListRequest(int32(appID), fields[3]),
	}, nil
}

// IRQLine identifies a literal interrupt-controller line.
type IRQLine int

const (
	IRQUnknown IRQLine = iota
	IRQ0
	IRQ1
	IRQ2
)

// ParseIRQLine classifies a line emitted by the interrupt controller
// child. IC lines carry no payload beyond the literal (spec §4.3).
func ParseIRQLine(line string) IRQLine {
	switch strings.TrimSpace(line) {
	case "IRQ0":
		return IRQ0
	case "IRQ1":
		return IRQ1
	case "IRQ2":
		return IRQ2
	default:
		return IRQUnknown
	}
}

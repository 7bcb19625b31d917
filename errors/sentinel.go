// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Scheduler and protocol errors.
var (
	// ErrOwnerOutOfRange indicates an SFP message's owner field is outside
	// 1..N.
	ErrOwnerOutOfRange = &KernelError{
		Kind:   ErrProtocol,
		Detail: "owner out of range",
	}

	// ErrReplyQueueFull indicates a reply FIFO overflowed (length > N).
	ErrReplyQueueFull = &KernelError{
		Kind:   ErrTransient,
		Detail: "reply queue full",
	}

	// ErrMalformedLine indicates a syscall line failed to parse.
	ErrMalformedLine = &KernelError{
		Kind:   ErrInvalidConfig,
		Detail: "malformed syscall line",
	}
)

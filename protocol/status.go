package protocol

import "fmt"

// Status is the transport-level result of a transaction.
type Status int32

const (
	StatusOK                 Status = 0
	StatusDeadObject         Status = -32         // -EPIPE
	StatusUnknownTransaction Status = -74         // -EBADMSG
	StatusBadType            Status = -2147483647 // UNKNOWN_ERROR + 1
	StatusFailedTransaction  Status = -2147483646 // UNKNOWN_ERROR + 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDeadObject:
		return "DEAD_OBJECT"
	case StatusUnknownTransaction:
		return "UNKNOWN_TRANSACTION"
	case StatusBadType:
		return "BAD_TYPE"
	case StatusFailedTransaction:
		return "FAILED_TRANSACTION"
	}
	return fmt.Sprintf("STATUS(%d)", int32(s))
}

// StatusError reports a reply whose transport status was not OK.
type StatusError struct {
	Code   uint32
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transaction %d failed: %s", e.Code, e.Status)
}

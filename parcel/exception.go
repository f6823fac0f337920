package parcel

// Exception codes written at the head of every reply.
const (
	ExceptionNone                 int32 = 0
	ExceptionSecurity             int32 = -1
	ExceptionBadParcelable        int32 = -2
	ExceptionIllegalArgument      int32 = -3
	ExceptionNullPointer          int32 = -4
	ExceptionIllegalState         int32 = -5
	ExceptionUnsupportedOperation int32 = -7
	ExceptionServiceSpecific      int32 = -8
)

var exceptionNames = map[int32]string{
	ExceptionNone:                 "none",
	ExceptionSecurity:             "security",
	ExceptionBadParcelable:        "bad parcelable",
	ExceptionIllegalArgument:      "illegal argument",
	ExceptionNullPointer:          "null pointer",
	ExceptionIllegalState:         "illegal state",
	ExceptionUnsupportedOperation: "unsupported operation",
	ExceptionServiceSpecific:      "service specific",
}

// ExceptionName returns a readable name for code, or "unknown".
func ExceptionName(code int32) string {
	if name, ok := exceptionNames[code]; ok {
		return name
	}
	return "unknown"
}

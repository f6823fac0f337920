package parcel

import (
	"unicode/utf16"
)

// String16 is a wide string as it travels on the wire: UTF-16 code units.
type String16 []uint16

// NewString16 encodes s as UTF-16.
func NewString16(s string) String16 {
	return String16(utf16.Encode([]rune(s)))
}

// String decodes the code units as UTF-16. Unpaired surrogates become U+FFFD.
func (s String16) String() string {
	return string(utf16.Decode(s))
}

// Narrow projects s onto ASCII: every unit below 128 becomes one byte and every
// other unit is dropped. Nothing is substituted. Non-ASCII labels lose characters.
func (s String16) Narrow() string {
	b := make([]byte, 0, len(s))
	for _, u := range s {
		if u < 128 {
			b = append(b, byte(u))
		}
	}
	return string(b)
}

// Equal reports whether both strings hold the same code units.
func (s String16) Equal(other String16) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Package labels holds the ordered set of optional text values a pipeline run
// deduplicates.
package labels

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Label is an optional text value. An absent label has no similarity with anything.
type Label struct {
	Text    string
	Present bool
}

// Of returns a present label holding s
func Of(s string) Label {
	return Label{Text: s, Present: true}
}

// Absent returns the absent label
func Absent() Label {
	return Label{}
}

// String renders the label for diagnostics; absent labels render as <absent>.
func (l Label) String() string {
	if !l.Present {
		return "<absent>"
	}
	return strconv.Quote(l.Text)
}

// Set is an ordered, read-only sequence of labels
type Set []Label

// FromStrings builds a set where every value is present
func FromStrings(values []string) Set {
	set := make(Set, len(values))
	for i, v := range values {
		set[i] = Of(v)
	}
	return set
}

// FromPointers builds a set where nil pointers are absent labels
func FromPointers(values []*string) Set {
	set := make(Set, len(values))
	for i, v := range values {
		if v != nil {
			set[i] = Of(*v)
		}
	}
	return set
}

// Len returns the number of labels, absent ones included
func (s Set) Len() int {
	return len(s)
}

// AbsentCount returns how many labels are absent
func (s Set) AbsentCount() int {
	n := 0
	for _, l := range s {
		if !l.Present {
			n++
		}
	}
	return n
}

// Equal reports exact structural equality: same length, same order, same presence
// and same text. Two absent labels are equal; an absent label never equals a
// present one, not even the empty string.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Present != other[i].Present {
			return false
		}
		if s[i].Present && s[i].Text != other[i].Text {
			return false
		}
	}
	return true
}

// Fingerprint returns an xxhash digest of the set. Equal sets have equal
// fingerprints; the cache uses it to reject mismatches before the full compare.
func (s Set) Fingerprint() uint64 {
	d := xxhash.New()
	var hdr [9]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(s)))
	_, _ = d.Write(hdr[:8])
	for _, l := range s {
		if !l.Present {
			hdr[0] = 0
			_, _ = d.Write(hdr[:1])
			continue
		}
		hdr[0] = 1
		binary.LittleEndian.PutUint64(hdr[1:], uint64(len(l.Text)))
		_, _ = d.Write(hdr[:])
		_, _ = d.WriteString(l.Text)
	}
	return d.Sum64()
}

package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPointers(t *testing.T) {
	apple := "apple"
	empty := ""
	set := FromPointers([]*string{&apple, nil, &empty})

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, Of("apple"), set[0])
	assert.False(t, set[1].Present)
	assert.True(t, set[2].Present, "empty string is present, not absent")
	assert.Equal(t, 1, set.AbsentCount())
}

func TestLabelString(t *testing.T) {
	assert.Equal(t, `"apple"`, Of("apple").String())
	assert.Equal(t, "<absent>", Absent().String())
}

func TestSetEqual(t *testing.T) {
	base := Set{Of("apple"), Absent(), Of("")}

	tests := []struct {
		name  string
		other Set
		equal bool
	}{
		{"identical", Set{Of("apple"), Absent(), Of("")}, true},
		{"different length", Set{Of("apple"), Absent()}, false},
		{"changed text", Set{Of("appel"), Absent(), Of("")}, false},
		{"absent vs empty", Set{Of("apple"), Of(""), Of("")}, false},
		{"empty vs absent", Set{Of("apple"), Absent(), Absent()}, false},
		{"reordered", Set{Absent(), Of("apple"), Of("")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, base.Equal(tt.other))
			assert.Equal(t, tt.equal, tt.other.Equal(base))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Set{Of("apple"), Absent(), Of("banana")}
	b := Set{Of("apple"), Absent(), Of("banana")}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	// Presence and boundaries are part of the digest
	assert.NotEqual(t, a.Fingerprint(), Set{Of("apple"), Of(""), Of("banana")}.Fingerprint())
	assert.NotEqual(t, Set{Of("ab"), Of("c")}.Fingerprint(), Set{Of("a"), Of("bc")}.Fingerprint())
	assert.NotEqual(t, Set{}.Fingerprint(), Set{Absent()}.Fingerprint())
}

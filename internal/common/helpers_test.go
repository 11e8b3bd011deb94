package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSameLocalDate(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)

	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{
			name: "same utc day, same local day",
			a:    time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "same utc day, local rollover",
			a:    time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 10, 14, 22, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "different utc day, same local day",
			a:    time.Date(2026, 10, 13, 22, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SameLocalDate(tc.a, tc.b, msk))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "@alice", DisplayName("alice", "Alice", "Liddell"))
	assert.Equal(t, "Alice Liddell", DisplayName("", "Alice", "Liddell"))
	assert.Equal(t, "Alice", DisplayName("", "Alice", ""))
}

func TestPluralizeUsers(t *testing.T) {
	cases := map[int]string{
		0: "участников", 1: "участник", 2: "участника", 4: "участника", 5: "участников",
		11: "участников", 12: "участников", 21: "участник", 22: "участника", 114: "участников",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeUsers(n), "n=%d", n)
	}
}

func TestLoadLocationFallback(t *testing.T) {
	loc := LoadLocation("Nowhere/Atlantis")
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 3*60*60, offset)
}

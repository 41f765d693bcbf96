package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_ValueIsSortable(t *testing.T) {
	earlier := Date(time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC))
	later := Date(time.Date(2025, 3, 1, 10, 0, 5, 500_000_000, time.UTC))

	a, err := earlier.Value()
	require.NoError(t, err)
	b, err := later.Value()
	require.NoError(t, err)

	assert.Equal(t, "2025-03-01T10:00:05.000000000Z", a)
	assert.Less(t, a.(string), b.(string))
}

func TestDate_ValueConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	d := Date(time.Date(2025, 3, 1, 13, 0, 0, 0, loc))

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T10:00:00.000000000Z", v)
}

func TestDate_Scan(t *testing.T) {
	want := time.Date(2025, 3, 1, 10, 0, 5, 123, time.UTC)

	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"fixed layout", "2025-03-01T10:00:05.000000123Z", want},
		{"bytes", []byte("2025-03-01T10:00:05.000000123Z"), want},
		{"rfc3339", "2025-03-01T10:00:05Z", want.Truncate(time.Second)},
		{"sqlite timestamp", "2025-03-01 10:00:05", want.Truncate(time.Second)},
		{"time value", want, want},
		{"null", nil, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.value))
			assert.True(t, tt.want.Equal(d.Time()), "got %s", d.Time())
		})
	}
}

func TestDate_ScanRejectsGarbage(t *testing.T) {
	var d Date
	assert.Error(t, d.Scan("yesterday"))
	assert.Error(t, d.Scan(42))
}

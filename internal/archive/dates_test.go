package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestDaysAgo(t *testing.T) {
	t.Parallel()

	shanghai := mustLoad(t, "Asia/Shanghai")
	tokyo := mustLoad(t, "Asia/Tokyo")
	london := mustLoad(t, "Europe/London")

	tests := []struct {
		name  string
		date  time.Time
		today time.Time
		want  int
	}{
		{
			name:  "same zone",
			date:  time.Date(2019, 5, 31, 23, 59, 59, 0, shanghai),
			today: time.Date(2019, 7, 23, 15, 4, 5, 0, shanghai),
			want:  53,
		},
		{
			name:  "today carries a different zone",
			date:  time.Date(2019, 7, 8, 23, 59, 59, 0, shanghai),
			today: time.Date(2019, 7, 23, 0, 0, 0, 0, tokyo),
			want:  14,
		},
		{
			name:  "UTC evening is already tomorrow in London",
			date:  time.Date(2019, 10, 27, 0, 0, 0, 0, london),
			today: time.Date(2019, 10, 26, 23, 59, 59, 0, time.UTC),
			want:  0,
		},
		{
			name:  "future date is negative",
			date:  time.Date(2019, 4, 4, 0, 0, 0, 0, london),
			today: time.Date(2019, 4, 1, 23, 59, 59, 0, time.UTC),
			want:  -2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DaysAgo(tt.date, tt.today))
		})
	}
}

func TestDateBefore(t *testing.T) {
	t.Parallel()

	shanghai := mustLoad(t, "Asia/Shanghai")
	tokyo := mustLoad(t, "Asia/Tokyo")
	london := mustLoad(t, "Europe/London")

	tests := []struct {
		name  string
		n     int
		loc   *time.Location
		today time.Time
		want  string
	}{
		{
			name:  "same zone",
			n:     53,
			loc:   shanghai,
			today: time.Date(2019, 7, 23, 15, 4, 5, 0, shanghai),
			want:  "2019-05-31 00:00:00",
		},
		{
			name:  "today carries a different zone",
			n:     14,
			loc:   shanghai,
			today: time.Date(2019, 7, 23, 0, 0, 0, 0, tokyo),
			want:  "2019-07-08 00:00:00",
		},
		{
			name:  "zero keeps today",
			n:     0,
			loc:   london,
			today: time.Date(2019, 10, 26, 23, 59, 59, 0, time.UTC),
			want:  "2019-10-27 00:00:00",
		},
		{
			name:  "negative moves forward",
			n:     -2,
			loc:   london,
			today: time.Date(2019, 4, 1, 23, 59, 59, 0, time.UTC),
			want:  "2019-04-04 00:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DateBefore(tt.n, tt.loc, tt.today)
			assert.Equal(t, tt.want, got.Format("2006-01-02 15:04:05"))
			assert.Equal(t, tt.loc, got.Location())
		})
	}
}

func TestDateBeforeDaysAgoRoundTrip(t *testing.T) {
	t.Parallel()

	shanghai := mustLoad(t, "Asia/Shanghai")
	london := mustLoad(t, "Europe/London")
	today := time.Date(2019, 11, 2, 9, 30, 0, 0, shanghai)

	for _, loc := range []*time.Location{shanghai, london, time.UTC} {
		for _, n := range []int{-3, 0, 1, 7, 30, 400} {
			got := DaysAgo(DateBefore(n, loc, today), today)
			assert.Equal(t, n, got, "n=%d loc=%s", n, loc)
		}
	}
}

func TestParseFullStartDate(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"201905221600": "2019-05-23 00:00:00 +08:00",
		"201905230700": "2019-05-23 00:00:00 -07:00",
		"201905221830": "2019-05-23 00:00:00 +05:30",
		"201905221400": "2019-05-23 00:00:00 +10:00",
		// Exactly noon counts as already rolled.
		"201905221200": "2019-05-23 00:00:00 +12:00",
		"201905230000": "2019-05-23 00:00:00 +00:00",
	}
	for raw, want := range tests {
		got, err := ParseFullStartDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.Format("2006-01-02 15:04:05 -07:00"), raw)
	}
}

func TestParseFullStartDateInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "2019052216", "notatimestamp", "201913401600"} {
		_, err := ParseFullStartDate(raw)
		require.Error(t, err, raw)
		assert.Equal(t, KindInvalidInput, KindOf(err), raw)
	}
}

func TestToday(t *testing.T) {
	t.Parallel()

	shanghai := mustLoad(t, "Asia/Shanghai")
	now := time.Date(2019, 5, 22, 17, 30, 0, 0, time.UTC)

	got := Today(shanghai, now)
	assert.Equal(t, "2019-05-23 00:00:00", got.Format("2006-01-02 15:04:05"))
	assert.Equal(t, shanghai, got.Location())
}

func TestDayRollStatus(t *testing.T) {
	t.Parallel()

	shanghai := mustLoad(t, "Asia/Shanghai")
	tokyo := mustLoad(t, "Asia/Tokyo")
	london := mustLoad(t, "Europe/London")
	losAngeles := mustLoad(t, "America/Los_Angeles")

	// 16:00 UTC on May 22nd is the moment UTC+8 rolls to May 23rd.
	now := time.Date(2019, 5, 22, 16, 0, 0, 0, time.UTC)
	status := DayRollStatus(
		[]*time.Location{shanghai, tokyo, london, losAngeles},
		now,
		8*3600,
	)

	assert.Equal(t, map[string]bool{
		"Asia/Shanghai":       true, // exactly on the boundary
		"Asia/Tokyo":          true, // already past it
		"Europe/London":       false,
		"America/Los_Angeles": false,
	}, status)
}

func TestOffsetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+08:00", OffsetName(8*3600))
	assert.Equal(t, "-07:00", OffsetName(-7*3600))
	assert.Equal(t, "+05:30", OffsetName(5*3600+30*60))
	assert.Equal(t, "+00:00", OffsetName(0))
}

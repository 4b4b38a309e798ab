package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolveSymbolicKeywords(t *testing.T) {
	now := time.Date(2024, time.March, 15, 13, 45, 0, 0, time.UTC)
	r := NewResolver(fixedClock(now), time.UTC)

	cases := []struct {
		keyword Keyword
		start   string
		end     string
	}{
		{Today, "2024-03-15", "2024-03-15"},
		{Yesterday, "2024-03-14", "2024-03-14"},
		{Last7Days, "2024-03-08", "2024-03-15"},
		{Last30Days, "2024-02-14", "2024-03-15"},
		{Last90Days, "2023-12-16", "2024-03-15"},
		{Last12Months, "2023-03-15", "2024-03-15"},
	}
	for _, tc := range cases {
		t.Run(string(tc.keyword), func(t *testing.T) {
			spec, err := r.Resolve(tc.keyword, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.keyword, spec.Keyword)
			assert.Equal(t, tc.start, spec.StartDate)
			assert.Equal(t, tc.end, spec.EndDate)

			again, err := r.Resolve(tc.keyword, nil)
			require.NoError(t, err)
			assert.Equal(t, spec, again)
		})
	}
}

func TestResolveSevenDaysMatchesClockArithmetic(t *testing.T) {
	for _, now := range []time.Time{
		time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2023, time.March, 1, 8, 0, 0, 0, time.UTC),
	} {
		r := NewResolver(fixedClock(now), time.UTC)
		spec, err := r.Resolve(Last7Days, nil)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, -7).Format(Layout), spec.StartDate)
		assert.Equal(t, now.Format(Layout), spec.EndDate)
	}
}

func TestResolveUsesInjectedLocation(t *testing.T) {
	// 23:30 UTC on the 15th is already the 16th in Tokyo.
	now := time.Date(2024, time.March, 15, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("+09:00", 9*3600)

	spec, err := NewResolver(fixedClock(now), tokyo).Resolve(Today, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-16", spec.StartDate)

	spec, err = NewResolver(fixedClock(now), time.UTC).Resolve(Today, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", spec.StartDate)
}

func TestResolveCustom(t *testing.T) {
	r := NewResolver(fixedClock(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)), time.UTC)

	spec, err := r.Resolve(Custom, &Explicit{StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.NoError(t, err)
	assert.Equal(t, Spec{Keyword: Custom, StartDate: "2024-01-01", EndDate: "2024-01-31"}, spec)

	spec, err = r.Resolve(Custom, &Explicit{StartDate: "2024-02-02", EndDate: "2024-02-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-02", spec.StartDate)

	bad := []*Explicit{
		nil,
		{StartDate: "2024-01-01"},
		{EndDate: "2024-01-01"},
		{StartDate: "2024-02-01", EndDate: "2024-01-01"},
		{StartDate: "01/02/2024", EndDate: "2024-01-03"},
		{StartDate: "2024-01-01", EndDate: "2024-13-01"},
	}
	for _, explicit := range bad {
		_, err := r.Resolve(Custom, explicit)
		assert.ErrorIs(t, err, ErrInvalidRange)
	}
}

func TestResolveUnknownKeyword(t *testing.T) {
	_, err := NewResolver(nil, nil).Resolve(Keyword("fortnight"), nil)
	assert.ErrorIs(t, err, ErrUnknownKeyword)
}

func TestParseKeyword(t *testing.T) {
	k, ok := ParseKeyword(" 7DAYS ")
	assert.True(t, ok)
	assert.Equal(t, Last7Days, k)

	k, ok = ParseKeyword("custom")
	assert.True(t, ok)
	assert.Equal(t, Custom, k)
	assert.False(t, k.IsSymbolic())

	_, ok = ParseKeyword("last week")
	assert.False(t, ok)

	assert.Len(t, Symbolic(), 6)
}

package policelog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverBuildPDFURL(t *testing.T) {
	t.Parallel()

	r := NewResolver("https://www.revere.org/")

	testCases := []struct {
		name string
		date time.Time
		want string
	}{
		{
			name: "thursday covers one day",
			date: NewDay(2025, time.October, 2),
			want: "https://www.revere.org/wp-content/uploads/2025/10/Public-Log-Redacted-10-02-25-7am-to-10-03-25-7am.pdf",
		},
		{
			name: "friday covers through monday",
			date: NewDay(2025, time.October, 3),
			want: "https://www.revere.org/wp-content/uploads/2025/10/Public-Log-Redacted-10-03-25-7am-to-10-06-25-7am.pdf",
		},
		{
			name: "folder uses range start month",
			date: NewDay(2025, time.January, 31),
			want: "https://www.revere.org/wp-content/uploads/2025/01/Public-Log-Redacted-01-31-25-7am-to-02-03-25-7am.pdf",
		},
		{
			name: "year rollover",
			date: NewDay(2024, time.December, 31),
			want: "https://www.revere.org/wp-content/uploads/2024/12/Public-Log-Redacted-12-31-24-7am-to-01-01-25-7am.pdf",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.BuildPDFURL(tc.date)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolverWeekendHasNoFile(t *testing.T) {
	t.Parallel()

	r := NewResolver("https://www.revere.org")
	for _, d := range []time.Time{NewDay(2025, time.October, 4), NewDay(2025, time.October, 5)} {
		got, ok := r.BuildPDFURL(d)
		assert.False(t, ok, "weekday %s", d.Weekday())
		assert.Empty(t, got)
	}
}

func TestResolverEndTokenOffsets(t *testing.T) {
	t.Parallel()

	r := NewResolver("https://www.revere.org")
	for _, d := range DatesBetween(NewDay(2025, time.March, 1), NewDay(2025, time.March, 31)) {
		got, ok := r.BuildPDFURL(d)
		if IsWeekend(d) {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		offset := 1
		if d.Weekday() == time.Friday {
			offset = 3
		}
		wantEnd := FormatDateToken(d.AddDate(0, 0, offset)) + "-7am.pdf"
		assert.True(t, strings.HasSuffix(got, wantEnd), "%s: %s", d.Format(DayLayout), got)
	}
}

package policelog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateToken(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		token   string
		want    time.Time
		wantErr bool
	}{
		{token: "10-03-25", want: NewDay(2025, time.October, 3)},
		{token: "10-03-25-7am", want: NewDay(2025, time.October, 3)},
		{token: "1-6-25-7AM", want: NewDay(2025, time.January, 6)},
		{token: "13-01-25", wantErr: true},
		{token: "02-30-25", wantErr: true},
		{token: "10-03-2025", wantErr: true},
		{token: "garbage", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := ParseDateToken(tc.token)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrDateParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDatesCoveredIsHalfOpen(t *testing.T) {
	t.Parallel()

	log := DiscoveredLog{
		StartDate: NewDay(2025, time.October, 3),
		EndDate:   NewDay(2025, time.October, 6),
	}
	assert.Equal(t, []time.Time{
		NewDay(2025, time.October, 3),
		NewDay(2025, time.October, 4),
		NewDay(2025, time.October, 5),
	}, DatesCovered(log))

	single := DiscoveredLog{StartDate: NewDay(2025, time.October, 3), EndDate: NewDay(2025, time.October, 3)}
	assert.Equal(t, []time.Time{NewDay(2025, time.October, 3)}, DatesCovered(single))
}

func TestDatesBetweenInclusive(t *testing.T) {
	t.Parallel()

	got := DatesBetween(NewDay(2025, time.February, 27), NewDay(2025, time.March, 2))
	require.Len(t, got, 4)
	assert.Equal(t, NewDay(2025, time.March, 2), got[3])
	assert.Nil(t, DatesBetween(NewDay(2025, time.March, 2), NewDay(2025, time.March, 1)))
}

func TestFetchErrorMatchesRetrieval(t *testing.T) {
	t.Parallel()

	var err error = &FetchError{URL: "https://example/test.pdf", StatusCode: 503}
	assert.True(t, errors.Is(err, ErrRetrieval))
	assert.True(t, err.(*FetchError).Retryable())
	assert.False(t, (&FetchError{StatusCode: 404}).Retryable())
}

package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

const twoEntryFixture = `# Revere Police Department

## For Date: 10/02/2025 - Thursday

Call Number  Time  Call Reason  Action

25-48123  0012  MOTOR VEHICLE STOP  VERBAL WARNING
    Location/Address:  [REV 24865] REVERE BEACH PKWY
    Refer To Citation:  T1234567
25-48124  0105  WELL BEING CHECK  SERVICES RENDERED
`

func TestParseTwoEntryFixture(t *testing.T) {
	t.Parallel()

	p := New(zap.NewNop())
	entries := p.Parse(twoEntryFixture, policelog.NewDay(2025, time.October, 1), "https://example/test.pdf")
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "25-48123", first.CallNumber)
	assert.Equal(t, "0012", first.Time24h)
	assert.Equal(t, "MOTOR VEHICLE STOP", first.CallReason)
	assert.Equal(t, "VERBAL WARNING", first.Action)
	assert.Equal(t, policelog.CallTypeTraffic, first.CallTypeCategory)
	assert.Equal(t, policelog.ActionWarning, first.ActionCategory)
	require.NotNil(t, first.LocationStreet)
	assert.Equal(t, "REVERE BEACH PKWY", *first.LocationStreet)
	require.NotNil(t, first.LocationCode)
	assert.Equal(t, "REV 24865", *first.LocationCode)
	require.NotNil(t, first.LocationAddress)
	assert.Equal(t, "[REV 24865] REVERE BEACH PKWY", *first.LocationAddress)
	assert.Equal(t, policelog.NewDay(2025, time.October, 2), first.LogDate)
	assert.Equal(t, time.Date(2025, time.October, 2, 0, 12, 0, 0, time.UTC), first.Timestamp)
	assert.Len(t, first.RawEntry, 3)
	assert.Equal(t, "https://example/test.pdf", first.SourceURL)

	second := entries[1]
	assert.Equal(t, "25-48124", second.CallNumber)
	assert.Equal(t, policelog.CallTypeAssistService, second.CallTypeCategory)
	assert.Equal(t, policelog.ActionServicesRendered, second.ActionCategory)
	assert.Nil(t, second.LocationStreet)
	assert.Nil(t, second.LocationCode)
	assert.Len(t, second.RawEntry, 1)
}

func TestParseDateRollover(t *testing.T) {
	t.Parallel()

	text := `For Date: 10/02/2025 - Thursday
25-48200  2350  NOISE COMPLAINT  SERVICES RENDERED
For Date: 10/03/2025 - Friday
25-48201  0005  MOTOR VEHICLE STOP  VERBAL WARNING
25-48202  0110  ASSAULT  ARREST(S) MADE
`
	entries := New(nil).Parse(text, policelog.NewDay(2025, time.October, 2), "https://example/test.pdf")
	require.Len(t, entries, 3)

	assert.Equal(t, policelog.NewDay(2025, time.October, 2), entries[0].LogDate)
	assert.Equal(t, policelog.NewDay(2025, time.October, 3), entries[1].LogDate)
	assert.Equal(t, policelog.NewDay(2025, time.October, 3), entries[2].LogDate)
	assert.Equal(t, time.Date(2025, time.October, 3, 1, 10, 0, 0, time.UTC), entries[2].Timestamp)
}

func TestParseUsesFallbackDateBeforeHeader(t *testing.T) {
	t.Parallel()

	text := "25-00001  0700  FIRE ALARM  INVESTIGATED\n"
	entries := New(nil).Parse(text, time.Date(2025, time.June, 9, 15, 0, 0, 0, time.UTC), "u")
	require.Len(t, entries, 1)
	assert.Equal(t, policelog.NewDay(2025, time.June, 9), entries[0].LogDate)
	assert.Equal(t, policelog.CallTypeFireSafety, entries[0].CallTypeCategory)
	assert.Equal(t, policelog.ActionInvestigated, entries[0].ActionCategory)
}

func TestParseOnlyFirstLocationCounts(t *testing.T) {
	t.Parallel()

	text := `25-00002  0800  PARKING COMPLAINT  NO ACTION REQUIRED
Location/Address: [REV 1] BROADWAY
Location/Address: [REV 2] SHIRLEY AVE
`
	entries := New(nil).Parse(text, policelog.NewDay(2025, time.June, 9), "u")
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].LocationStreet)
	assert.Equal(t, "BROADWAY", *entries[0].LocationStreet)
	assert.Len(t, entries[0].RawEntry, 2)
}

func TestParseLocationWithoutEntryIsDroppedAndLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	text := `Location/Address: [REV 9] NOWHERE ST
25-00003  0900  SUSPICIOUS ACTIVITY  GONE ON ARRIVAL
`
	entries := New(zap.New(core)).Parse(text, policelog.NewDay(2025, time.June, 9), "u")
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].LocationAddress)
	assert.Equal(t, 1, logs.FilterMessage("location line without an open entry; dropping").Len())
}

func TestParseMarkdownTableRows(t *testing.T) {
	t.Parallel()

	text := `| Call Number | Time | Call Reason | Action |
|---|---|---|---|
| 25-48125 | 1432 | LARCENY | REPORT TAKEN |
`
	entries := New(nil).Parse(text, policelog.NewDay(2025, time.June, 9), "u")
	require.Len(t, entries, 1)
	assert.Equal(t, "LARCENY", entries[0].CallReason)
	assert.Equal(t, "REPORT TAKEN", entries[0].Action)
	assert.Equal(t, policelog.CallTypeTheftProperty, entries[0].CallTypeCategory)
	assert.Equal(t, policelog.ActionReport, entries[0].ActionCategory)
}

func TestSplitReasonAction(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		rest       string
		wantReason string
		wantAction string
	}{
		{"MOTOR VEHICLE STOP  VERBAL WARNING", "MOTOR VEHICLE STOP", "VERBAL WARNING"},
		{"SUSPICIOUS ACTIVITY GONE ON ARRIVAL", "SUSPICIOUS ACTIVITY", "GONE ON ARRIVAL"},
		{"Phone - Well Being Check SERVICES RENDERED", "Phone - Well Being Check", "SERVICES RENDERED"},
		{"ASSAULT ARREST", "ASSAULT", "ARREST"},
		{"Animal complaint", "Animal complaint", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.rest, func(t *testing.T) {
			reason, action := splitReasonAction(tc.rest)
			assert.Equal(t, tc.wantReason, reason)
			assert.Equal(t, tc.wantAction, action)
		})
	}
}

package dataset

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "donorcli/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveColumnsAliases(t *testing.T) {
	cols, err := ResolveColumns([]string{"Postal Code", "Month_Year", "Total_Amount", "Donor Type", "Source"})
	require.NoError(t, err)

	assert.Equal(t, 0, cols[FieldPostcode])
	assert.Equal(t, 1, cols[FieldDate])
	assert.Equal(t, 2, cols[FieldAmount])
	assert.Equal(t, 3, cols[FieldDonorType])
	assert.Equal(t, 4, cols[FieldSource])
	assert.False(t, cols.Has(FieldLatitude))
}

func TestResolveColumnsMissingPostcode(t *testing.T) {
	_, err := ResolveColumns([]string{"Date", "Amount"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeSchema, appErr.Type)
	assert.Equal(t, []string{"Date", "Amount"}, appErr.Context["available"])
}

func TestResolveColumnsMissingDate(t *testing.T) {
	_, err := ResolveColumns([]string{"Postcode", "Amount"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date column")
}

func TestNormalizeBasicRow(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Total_Amount", "Donor_Type", "Source"},
		Rows: [][]string{
			{"br1 3ab", "03/04/2024", "£1,250.50", "Individual", "LOTDON"},
		},
	}

	events, outcome, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, outcome.Kept)

	event := events[0]
	assert.Equal(t, "BR13AB", event.Postcode)
	assert.Equal(t, "BR", event.Area)
	// Day-first: 03/04/2024 is 3 April
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), event.Date)
	assert.Equal(t, "2024-04", event.Month)
	assert.Equal(t, 1250.50, event.Amount)
	assert.Equal(t, "Individual", event.DonorType)
	assert.Equal(t, "LOTDON", event.Source)
	assert.Equal(t, "Unknown", event.Application)
	assert.Equal(t, "Unknown", event.Country)
	assert.False(t, event.HasCoords)
}

func TestNormalizeMonthYearDates(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Month_Year", "Total_Amount"},
		Rows: [][]string{
			{"DA1 1AA", "04/2024", "10"},
		},
	}

	events, _, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2024-04", events[0].Month)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), events[0].Date)
}

func TestNormalizeDropsBadRows(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Amount"},
		Rows: [][]string{
			{"", "03/04/2024", "10"},        // no postcode
			{"BR1 3AB", "not-a-date", "10"}, // bad date
			{"BR1 3AB", "03/04/2024", "10"}, // kept
		},
	}

	events, outcome, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, outcome.Kept)
	assert.Equal(t, 1, outcome.Dropped[DropBadPostcode])
	assert.Equal(t, 1, outcome.Dropped[DropBadDate])
	assert.Equal(t, 2, outcome.DroppedTotal())
}

func TestNormalizeMinDateCutoff(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Amount"},
		Rows: [][]string{
			{"BR1 3AB", "15/06/2021", "10"},
			{"BR1 3AB", "15/06/2022", "20"},
		},
	}

	minDate := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	events, outcome, err := NewNormalizer(minDate, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 20.0, events[0].Amount)
	assert.Equal(t, 1, outcome.Dropped[DropBeforeCutoff])
}

func TestNormalizeUnparsableAmountKeepsRow(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Amount"},
		Rows: [][]string{
			{"BR1 3AB", "03/04/2024", "gift aid"},
		},
	}

	events, outcome, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 0.0, events[0].Amount)
	assert.Equal(t, 1, outcome.Kept)
}

func TestNormalizeCoordinatesFromSource(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Amount", "latitude", "longitude"},
		Rows: [][]string{
			{"BR1 3AB", "03/04/2024", "10", "51.406", "0.015"},
			{"DA1 1AA", "03/04/2024", "10", "", ""},
		},
	}

	events, _, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.True(t, events[0].HasCoords)
	assert.Equal(t, 51.406, events[0].Latitude)
	assert.False(t, events[1].HasCoords)
}

func TestNormalizeShortRow(t *testing.T) {
	table := &Table{
		Header: []string{"Postcode", "Date", "Amount", "Source"},
		Rows: [][]string{
			{"BR1 3AB", "03/04/2024"}, // ragged row, no amount or source cells
		},
	}

	events, _, err := NewNormalizer(time.Time{}, discardLogger()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 0.0, events[0].Amount)
	assert.Equal(t, "Unknown", events[0].Source)
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, 1250.5, ParseAmount("£1,250.50"))
	assert.Equal(t, 10.0, ParseAmount(" 10 "))
	assert.Equal(t, 0.0, ParseAmount(""))
	assert.Equal(t, 0.0, ParseAmount("n/a"))
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Lottery donation", SourceLabel("LOTDON"))
	assert.Equal(t, "Memory Tree", SourceLabel("IMOMTR"))
	assert.Equal(t, "XYZ123", SourceLabel("XYZ123"))
}

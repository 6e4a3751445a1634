package dataset

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"donorcli/internal/postcode"
	"donorcli/pkg/contracts/domain"
)

// DropReason classifies why a row was excluded during normalization.
type DropReason string

const (
	DropBadPostcode  DropReason = "bad_postcode"
	DropBadDate      DropReason = "bad_date"
	DropBeforeCutoff DropReason = "before_cutoff"
)

// Outcome reports per-row results of a normalization pass. Rows are never
// dropped silently; every exclusion is counted by reason.
type Outcome struct {
	Kept    int                `json:"kept"`
	Dropped map[DropReason]int `json:"dropped"`
}

// DroppedTotal returns the total number of excluded rows.
func (o *Outcome) DroppedTotal() int {
	total := 0
	for _, n := range o.Dropped {
		total += n
	}
	return total
}

// dayFirstFormats are tried in order for full dates. UK exports write
// 03/04/2024 meaning 3 April.
var dayFirstFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
}

// monthYearFormats cover Month_Year style columns ("04/2024").
var monthYearFormats = []string{
	"01/2006",
	"1/2006",
	"2006-01",
}

// Normalizer converts raw tables into canonical donation events.
type Normalizer struct {
	minDate time.Time
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer. A zero minDate disables the cutoff.
func NewNormalizer(minDate time.Time, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{minDate: minDate, logger: logger}
}

// Normalize resolves the table's columns and converts each row. Rows with an
// unusable postcode or date are dropped and counted; a missing postcode or
// date column fails the whole table.
func (n *Normalizer) Normalize(table *Table) ([]domain.NormalizedEvent, *Outcome, error) {
	cols, err := ResolveColumns(table.Header)
	if err != nil {
		return nil, nil, err
	}

	outcome := &Outcome{Dropped: make(map[DropReason]int)}
	events := make([]domain.NormalizedEvent, 0, len(table.Rows))

	for _, row := range table.Rows {
		canonical, ok := postcode.Normalize(cell(row, cols[FieldPostcode]))
		if !ok {
			outcome.Dropped[DropBadPostcode]++
			continue
		}

		date, ok := parseEventDate(cell(row, cols[FieldDate]))
		if !ok {
			outcome.Dropped[DropBadDate]++
			continue
		}
		if !n.minDate.IsZero() && date.Before(n.minDate) {
			outcome.Dropped[DropBeforeCutoff]++
			continue
		}

		event := domain.NormalizedEvent{
			Postcode:    canonical,
			Area:        postcode.Area(canonical),
			Month:       date.Format("2006-01"),
			Date:        date,
			Amount:      ParseAmount(cell(row, cols[FieldAmount])),
			DonorType:   strings.TrimSpace(cell(row, cols[FieldDonorType])),
			Source:      textOrUnknown(cell(row, cols[FieldSource])),
			Application: textOrUnknown(cell(row, cols[FieldApplication])),
			Country:     textOrUnknown(cell(row, cols[FieldCountry])),
		}

		if cols.Has(FieldLatitude) && cols.Has(FieldLongitude) {
			lat, latErr := strconv.ParseFloat(strings.TrimSpace(cell(row, cols[FieldLatitude])), 64)
			lon, lonErr := strconv.ParseFloat(strings.TrimSpace(cell(row, cols[FieldLongitude])), 64)
			if latErr == nil && lonErr == nil {
				event.Latitude = lat
				event.Longitude = lon
				event.HasCoords = true
			}
		}

		events = append(events, event)
		outcome.Kept++
	}

	n.logger.Info("dataset normalized",
		slog.Int("kept", outcome.Kept),
		slog.Int("dropped", outcome.DroppedTotal()))

	return events, outcome, nil
}

// parseEventDate parses a full day-first date or a month-year value. A bare
// month resolves to its first day.
func parseEventDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range monthYearFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses a donation amount, tolerating pound signs and thousands
// separators. Unparsable amounts become 0 so the event is still counted.
func ParseAmount(raw string) float64 {
	cleaned := strings.NewReplacer("£", "", ",", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}

func textOrUnknown(raw string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return "Unknown"
}

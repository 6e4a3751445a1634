package exporter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"donorcli/pkg/contracts/domain"
)

// set fields are stored as a single CSV cell with this separator
const setSeparator = ";"

// EventHeader is the column layout of the enriched per-event table.
var EventHeader = []string{
	"postcode", "area", "month", "date", "amount",
	"donor_type", "source", "application", "country",
	"latitude", "longitude",
}

// AggregateHeader is the column layout of the monthly aggregate table.
var AggregateHeader = []string{
	"postcode", "month", "latitude", "longitude", "country", "area", "region",
	"catchment", "donor_types", "sources", "primary_source",
	"total_amount", "max_single_amount", "event_count",
}

// RollupHeader is the column layout of the per-postcode rollup table.
var RollupHeader = []string{
	"postcode", "latitude", "longitude", "country", "area", "region",
	"catchment", "donor_types", "sources", "primary_source",
	"total_amount", "max_amount", "event_count", "latest_month", "latest_amount",
}

// DonorResultsHeader is the column layout of the durable donor results table.
var DonorResultsHeader = []string{
	"month", "postcode", "donor_type", "total_amount", "donor_count",
	"source", "application",
}

// EncodeEvents converts enriched events to CSV records.
func EncodeEvents(events []domain.NormalizedEvent) [][]string {
	records := make([][]string, 0, len(events))
	for _, e := range events {
		records = append(records, []string{
			e.Postcode,
			e.Area,
			e.Month,
			e.Date.Format("2006-01-02"),
			formatFloat(e.Amount),
			e.DonorType,
			e.Source,
			e.Application,
			e.Country,
			formatFloat(e.Latitude),
			formatFloat(e.Longitude),
		})
	}
	return records
}

// DecodeEvents parses CSV records back into enriched events. Every decoded
// event has coordinates; rows without them never reach the enriched table.
func DecodeEvents(records [][]string) ([]domain.NormalizedEvent, error) {
	events := make([]domain.NormalizedEvent, 0, len(records))
	for i, rec := range records {
		if len(rec) < len(EventHeader) {
			return nil, fmt.Errorf("event row %d has %d columns, want %d", i+1, len(rec), len(EventHeader))
		}
		date, err := time.Parse("2006-01-02", rec[3])
		if err != nil {
			return nil, fmt.Errorf("event row %d: invalid date %q: %w", i+1, rec[3], err)
		}
		amount, err := parseFloat(rec[4])
		if err != nil {
			return nil, fmt.Errorf("event row %d: invalid amount %q: %w", i+1, rec[4], err)
		}
		lat, err := parseFloat(rec[9])
		if err != nil {
			return nil, fmt.Errorf("event row %d: invalid latitude %q: %w", i+1, rec[9], err)
		}
		lon, err := parseFloat(rec[10])
		if err != nil {
			return nil, fmt.Errorf("event row %d: invalid longitude %q: %w", i+1, rec[10], err)
		}
		events = append(events, domain.NormalizedEvent{
			Postcode:    rec[0],
			Area:        rec[1],
			Month:       rec[2],
			Date:        date,
			Amount:      amount,
			DonorType:   rec[5],
			Source:      rec[6],
			Application: rec[7],
			Country:     rec[8],
			Latitude:    lat,
			Longitude:   lon,
			HasCoords:   true,
		})
	}
	return events, nil
}

// EncodeAggregates converts monthly aggregates to CSV records.
func EncodeAggregates(aggs []domain.MonthlyAggregate) [][]string {
	records := make([][]string, 0, len(aggs))
	for _, a := range aggs {
		records = append(records, []string{
			a.Postcode,
			a.Month,
			formatFloat(a.Latitude),
			formatFloat(a.Longitude),
			a.Country,
			a.Area,
			a.Region,
			a.Catchment,
			strings.Join(a.DonorTypes, setSeparator),
			strings.Join(a.Sources, setSeparator),
			a.PrimarySource,
			formatFloat(a.TotalAmount),
			formatFloat(a.MaxSingleAmount),
			strconv.Itoa(a.EventCount),
		})
	}
	return records
}

// DecodeAggregates parses CSV records back into monthly aggregates.
func DecodeAggregates(records [][]string) ([]domain.MonthlyAggregate, error) {
	aggs := make([]domain.MonthlyAggregate, 0, len(records))
	for i, rec := range records {
		if len(rec) < len(AggregateHeader) {
			return nil, fmt.Errorf("aggregate row %d has %d columns, want %d", i+1, len(rec), len(AggregateHeader))
		}
		lat, err := parseFloat(rec[2])
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: invalid latitude: %w", i+1, err)
		}
		lon, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: invalid longitude: %w", i+1, err)
		}
		total, err := parseFloat(rec[11])
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: invalid total_amount: %w", i+1, err)
		}
		maxSingle, err := parseFloat(rec[12])
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: invalid max_single_amount: %w", i+1, err)
		}
		count, err := strconv.Atoi(rec[13])
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: invalid event_count: %w", i+1, err)
		}
		aggs = append(aggs, domain.MonthlyAggregate{
			Postcode:        rec[0],
			Month:           rec[1],
			Latitude:        lat,
			Longitude:       lon,
			Country:         rec[4],
			Area:            rec[5],
			Region:          rec[6],
			Catchment:       rec[7],
			DonorTypes:      splitSet(rec[8]),
			Sources:         splitSet(rec[9]),
			PrimarySource:   rec[10],
			TotalAmount:     total,
			MaxSingleAmount: maxSingle,
			EventCount:      count,
		})
	}
	return aggs, nil
}

// EncodeRollups converts postcode rollups to CSV records.
func EncodeRollups(rolls []domain.PostcodeRollup) [][]string {
	records := make([][]string, 0, len(rolls))
	for _, r := range rolls {
		records = append(records, []string{
			r.Postcode,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			r.Country,
			r.Area,
			r.Region,
			r.Catchment,
			strings.Join(r.DonorTypes, setSeparator),
			strings.Join(r.Sources, setSeparator),
			r.PrimarySource,
			formatFloat(r.TotalAmount),
			formatFloat(r.MaxAmount),
			strconv.Itoa(r.EventCount),
			r.LatestMonth,
			formatFloat(r.LatestAmount),
		})
	}
	return records
}

// DecodeRollups parses CSV records back into postcode rollups.
func DecodeRollups(records [][]string) ([]domain.PostcodeRollup, error) {
	rolls := make([]domain.PostcodeRollup, 0, len(records))
	for i, rec := range records {
		if len(rec) < len(RollupHeader) {
			return nil, fmt.Errorf("rollup row %d has %d columns, want %d", i+1, len(rec), len(RollupHeader))
		}
		lat, err := parseFloat(rec[1])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid latitude: %w", i+1, err)
		}
		lon, err := parseFloat(rec[2])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid longitude: %w", i+1, err)
		}
		total, err := parseFloat(rec[10])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid total_amount: %w", i+1, err)
		}
		maxAmount, err := parseFloat(rec[11])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid max_amount: %w", i+1, err)
		}
		count, err := strconv.Atoi(rec[12])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid event_count: %w", i+1, err)
		}
		latest, err := parseFloat(rec[14])
		if err != nil {
			return nil, fmt.Errorf("rollup row %d: invalid latest_amount: %w", i+1, err)
		}
		rolls = append(rolls, domain.PostcodeRollup{
			Postcode:      rec[0],
			Latitude:      lat,
			Longitude:     lon,
			Country:       rec[3],
			Area:          rec[4],
			Region:        rec[5],
			Catchment:     rec[6],
			DonorTypes:    splitSet(rec[7]),
			Sources:       splitSet(rec[8]),
			PrimarySource: rec[9],
			TotalAmount:   total,
			MaxAmount:     maxAmount,
			EventCount:    count,
			LatestMonth:   rec[13],
			LatestAmount:  latest,
		})
	}
	return rolls, nil
}

// EncodeDonorResults converts donor type rows to CSV records.
func EncodeDonorResults(rows []domain.DonorTypeMonthly) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Month,
			r.Postcode,
			r.DonorType,
			formatFloat(r.TotalAmount),
			strconv.Itoa(r.DonorCount),
			r.Source,
			r.Application,
		})
	}
	return records
}

// DecodeDonorResults parses CSV records back into donor type rows.
func DecodeDonorResults(records [][]string) ([]domain.DonorTypeMonthly, error) {
	rows := make([]domain.DonorTypeMonthly, 0, len(records))
	for i, rec := range records {
		if len(rec) < len(DonorResultsHeader) {
			return nil, fmt.Errorf("donor results row %d has %d columns, want %d", i+1, len(rec), len(DonorResultsHeader))
		}
		total, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("donor results row %d: invalid total_amount: %w", i+1, err)
		}
		count, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("donor results row %d: invalid donor_count: %w", i+1, err)
		}
		rows = append(rows, domain.DonorTypeMonthly{
			Month:       rec[0],
			Postcode:    rec[1],
			DonorType:   rec[2],
			TotalAmount: total,
			DonorCount:  count,
			Source:      rec[5],
			Application: rec[6],
		})
	}
	return rows, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, setSeparator)
}

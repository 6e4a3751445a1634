// Package aggregate recomputes derived tables from normalized donation
// events. Aggregation is wholesale: every run rebuilds its output from the
// full event set, and output ordering is deterministic regardless of input
// row order.
package aggregate

import (
	"sort"

	"donorcli/internal/postcode"
	"donorcli/pkg/contracts/domain"
)

// Monthly groups events by (postcode, month). Events without coordinates are
// excluded; they cannot be placed on a map. Output rows are sorted by
// postcode, then month.
func Monthly(events []domain.NormalizedEvent) []domain.MonthlyAggregate {
	type key struct {
		postcode string
		month    string
	}

	groups := make(map[key]*domain.MonthlyAggregate)
	donorTypes := make(map[key]map[string]bool)
	sources := make(map[key]map[string]bool)

	for _, event := range events {
		if !event.HasCoords {
			continue
		}
		k := key{postcode: event.Postcode, month: event.Month}

		agg, ok := groups[k]
		if !ok {
			agg = &domain.MonthlyAggregate{
				Postcode:  event.Postcode,
				Month:     event.Month,
				Latitude:  event.Latitude,
				Longitude: event.Longitude,
				Country:   event.Country,
				Area:      event.Area,
				Region:    postcode.Region(event.Area),
				Catchment: postcode.Catchment(event.Postcode),
			}
			groups[k] = agg
			donorTypes[k] = make(map[string]bool)
			sources[k] = make(map[string]bool)
		}

		agg.TotalAmount += event.Amount
		if event.Amount > agg.MaxSingleAmount {
			agg.MaxSingleAmount = event.Amount
		}
		agg.EventCount++

		if event.DonorType != "" {
			donorTypes[k][event.DonorType] = true
		}
		if event.Source != "" {
			sources[k][event.Source] = true
		}
	}

	out := make([]domain.MonthlyAggregate, 0, len(groups))
	for k, agg := range groups {
		agg.DonorTypes = sortedSet(donorTypes[k])
		agg.Sources = sortedSet(sources[k])
		agg.PrimarySource = primarySource(agg.Sources)
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Postcode != out[j].Postcode {
			return out[i].Postcode < out[j].Postcode
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// ByDonorType groups events by (month, postcode, donor type), the shape the
// durable results table uses. Source and Application take the first value
// seen in sorted event order. Output rows are sorted by month, postcode, then
// donor type.
func ByDonorType(events []domain.NormalizedEvent) []domain.DonorTypeMonthly {
	ordered := make([]domain.NormalizedEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Month != ordered[j].Month {
			return ordered[i].Month < ordered[j].Month
		}
		if ordered[i].Postcode != ordered[j].Postcode {
			return ordered[i].Postcode < ordered[j].Postcode
		}
		return ordered[i].DonorType < ordered[j].DonorType
	})

	type key struct {
		month     string
		postcode  string
		donorType string
	}

	groups := make(map[key]*domain.DonorTypeMonthly)
	order := make([]key, 0)

	for _, event := range ordered {
		k := key{month: event.Month, postcode: event.Postcode, donorType: event.DonorType}
		row, ok := groups[k]
		if !ok {
			row = &domain.DonorTypeMonthly{
				Month:       event.Month,
				Postcode:    event.Postcode,
				DonorType:   event.DonorType,
				Source:      event.Source,
				Application: event.Application,
			}
			groups[k] = row
			order = append(order, k)
		}
		row.TotalAmount += event.Amount
		row.DonorCount++
	}

	out := make([]domain.DonorTypeMonthly, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// MergeDonorTypeResults folds newly ingested rows into previously persisted
// results. Matching (month, postcode, donor type) keys merge by summation;
// Source and Application keep the existing row's values. Output is sorted
// like ByDonorType.
func MergeDonorTypeResults(existing, incoming []domain.DonorTypeMonthly) []domain.DonorTypeMonthly {
	type key struct {
		month     string
		postcode  string
		donorType string
	}

	merged := make(map[key]*domain.DonorTypeMonthly, len(existing))
	for _, row := range existing {
		row := row
		merged[key{row.Month, row.Postcode, row.DonorType}] = &row
	}
	for _, row := range incoming {
		k := key{row.Month, row.Postcode, row.DonorType}
		if prior, ok := merged[k]; ok {
			prior.TotalAmount += row.TotalAmount
			prior.DonorCount += row.DonorCount
			continue
		}
		row := row
		merged[k] = &row
	}

	out := make([]domain.DonorTypeMonthly, 0, len(merged))
	for _, row := range merged {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		if out[i].Postcode != out[j].Postcode {
			return out[i].Postcode < out[j].Postcode
		}
		return out[i].DonorType < out[j].DonorType
	})
	return out
}

// Rollup collapses every event for one postcode into a single row for map
// display. LatestMonth is the most recent month with activity and
// LatestAmount the total donated in it. Output is sorted by postcode.
func Rollup(events []domain.NormalizedEvent) []domain.PostcodeRollup {
	groups := make(map[string]*domain.PostcodeRollup)
	donorTypes := make(map[string]map[string]bool)
	sources := make(map[string]map[string]bool)
	monthAmounts := make(map[string]map[string]float64)

	for _, event := range events {
		if !event.HasCoords {
			continue
		}
		k := event.Postcode

		roll, ok := groups[k]
		if !ok {
			roll = &domain.PostcodeRollup{
				Postcode:  event.Postcode,
				Latitude:  event.Latitude,
				Longitude: event.Longitude,
				Country:   event.Country,
				Area:      event.Area,
				Region:    postcode.Region(event.Area),
				Catchment: postcode.Catchment(event.Postcode),
			}
			groups[k] = roll
			donorTypes[k] = make(map[string]bool)
			sources[k] = make(map[string]bool)
			monthAmounts[k] = make(map[string]float64)
		}

		roll.TotalAmount += event.Amount
		if event.Amount > roll.MaxAmount {
			roll.MaxAmount = event.Amount
		}
		roll.EventCount++
		monthAmounts[k][event.Month] += event.Amount

		if event.DonorType != "" {
			donorTypes[k][event.DonorType] = true
		}
		if event.Source != "" {
			sources[k][event.Source] = true
		}
	}

	out := make([]domain.PostcodeRollup, 0, len(groups))
	for k, roll := range groups {
		roll.DonorTypes = sortedSet(donorTypes[k])
		roll.Sources = sortedSet(sources[k])
		roll.PrimarySource = primarySource(roll.Sources)
		for month, amount := range monthAmounts[k] {
			if month > roll.LatestMonth {
				roll.LatestMonth = month
				roll.LatestAmount = amount
			}
		}
		out = append(out, *roll)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Postcode < out[j].Postcode
	})
	return out
}

// primarySource derives the headline source for a sorted distinct source set.
func primarySource(sources []string) string {
	switch len(sources) {
	case 0:
		return "Unknown"
	case 1:
		return sources[0]
	default:
		return "Multiple"
	}
}

func sortedSet(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

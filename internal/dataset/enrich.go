package dataset

import (
	"sort"

	"donorcli/internal/geocode"
	"donorcli/pkg/contracts/domain"
)

// MissingPostcodes returns the sorted distinct postcodes of events that still
// lack coordinates.
func MissingPostcodes(events []domain.NormalizedEvent) []string {
	seen := make(map[string]bool)
	for _, event := range events {
		if !event.HasCoords {
			seen[event.Postcode] = true
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// AttachCoordinates fills coordinates and country from the cache for events
// that lack them. Events whose postcode is not cached stay without
// coordinates; aggregation skips them. Returns the number of events enriched.
func AttachCoordinates(events []domain.NormalizedEvent, store *geocode.Store) int {
	enriched := 0
	for i := range events {
		if events[i].HasCoords {
			continue
		}
		rec, ok := store.Get(events[i].Postcode)
		if !ok {
			continue
		}
		events[i].Latitude = rec.Latitude
		events[i].Longitude = rec.Longitude
		events[i].HasCoords = true
		if events[i].Country == "" || events[i].Country == "Unknown" {
			if rec.Country != "" {
				events[i].Country = rec.Country
			}
		}
		enriched++
	}
	return enriched
}

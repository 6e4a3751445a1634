package domain

import (
	"time"
)

// GeocodeRecord holds the resolved location for one canonical postcode.
// Records are immutable once cached: a postcode's coordinates are treated as a
// fixed fact, and re-running the pipeline never overwrites an existing entry.
type GeocodeRecord struct {
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AdminDistrict string  `json:"admin_district"`
	AdminCounty   string  `json:"admin_county"`
	Country       string  `json:"country"`
}

// DonationEvent is one raw row as it arrives from an upstream export.
// All fields are kept as strings; parsing happens during normalization.
type DonationEvent struct {
	Postcode    string `json:"postcode"`
	RawDate     string `json:"raw_date"`
	RawAmount   string `json:"raw_amount"`
	DonorType   string `json:"donor_type"`
	Source      string `json:"source"`
	Application string `json:"application"`
}

// NormalizedEvent is a DonationEvent after canonicalization. Events with an
// unusable postcode or date never reach this form; they are dropped during
// normalization and reported through the drop counts.
type NormalizedEvent struct {
	Postcode    string    `json:"postcode"`
	Area        string    `json:"area"`
	Month       string    `json:"month"` // "YYYY-MM"
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	DonorType   string    `json:"donor_type"`
	Source      string    `json:"source"`
	Application string    `json:"application"`
	Country     string    `json:"country"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	HasCoords   bool      `json:"has_coords"`
}

// MonthlyAggregate is one row per (postcode, month), recomputed wholesale from
// the normalized event set on every aggregation run.
type MonthlyAggregate struct {
	Postcode        string   `json:"postcode"`
	Month           string   `json:"month"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Country         string   `json:"country"`
	Area            string   `json:"area"`
	Region          string   `json:"region"`
	Catchment       string   `json:"catchment,omitempty"`
	DonorTypes      []string `json:"donor_types"`
	Sources         []string `json:"sources"`
	PrimarySource   string   `json:"primary_source"`
	TotalAmount     float64  `json:"total_amount"`
	MaxSingleAmount float64  `json:"max_single_amount"`
	EventCount      int      `json:"event_count"`
}

// DonorTypeMonthly is the (month, postcode, donor type) grouping produced by
// workbook ingestion. Rows from successive ingests merge by summation into a
// durable results table.
type DonorTypeMonthly struct {
	Month       string  `json:"month"`
	Postcode    string  `json:"postcode"`
	DonorType   string  `json:"donor_type"`
	TotalAmount float64 `json:"total_amount"`
	DonorCount  int     `json:"donor_count"`
	Source      string  `json:"source"`
	Application string  `json:"application"`
}

// PostcodeRollup collapses every event for one postcode into a single row for
// map display: overall totals plus the most recent month's activity.
type PostcodeRollup struct {
	Postcode       string   `json:"postcode"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Country        string   `json:"country"`
	Area           string   `json:"area"`
	Region         string   `json:"region"`
	Catchment      string   `json:"catchment,omitempty"`
	DonorTypes     []string `json:"donor_types"`
	Sources        []string `json:"sources"`
	PrimarySource  string   `json:"primary_source"`
	TotalAmount    float64  `json:"total_amount"`
	MaxAmount      float64  `json:"max_amount"`
	EventCount     int      `json:"event_count"`
	LatestMonth    string   `json:"latest_month"`
	LatestAmount   float64  `json:"latest_amount"`
}

// Package dataset loads raw donation exports from CSV files and Excel
// workbooks, resolves their loosely named columns, and normalizes rows into
// canonical donation events.
package dataset

import (
	"fmt"
	"strings"

	apperrors "donorcli/internal/errors"
)

// Canonical field names used throughout normalization.
const (
	FieldPostcode    = "postcode"
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDonorType   = "donor_type"
	FieldSource      = "source"
	FieldApplication = "application"
	FieldCountry     = "country"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// columnAliases maps a canonicalized header to its field. Upstream exports
// spell the same column many ways; headers are lowercased and separator
// characters collapsed before lookup.
var columnAliases = map[string]string{
	"postcode":    FieldPostcode,
	"postal code": FieldPostcode,
	"post code":   FieldPostcode,

	"date":          FieldDate,
	"donation date": FieldDate,
	"month year":    FieldDate,
	"month":         FieldDate,

	"amount":          FieldAmount,
	"total amount":    FieldAmount,
	"donation amount": FieldAmount,

	"donor type": FieldDonorType,

	"source":      FieldSource,
	"application": FieldApplication,
	"country":     FieldCountry,

	"latitude":  FieldLatitude,
	"lat":       FieldLatitude,
	"longitude": FieldLongitude,
	"lon":       FieldLongitude,
	"lng":       FieldLongitude,
}

// Columns maps a canonical field to its index in the table header. Absent
// optional fields are simply missing from the map.
type Columns map[string]int

// Has reports whether the field was present in the source header.
func (c Columns) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// canonicalizeHeader lowers the header and collapses underscores, hyphens and
// runs of whitespace into single spaces, so "Donor_Type", "donor-type" and
// "Donor Type" all resolve alike.
func canonicalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}

// ResolveColumns maps a raw header row to canonical fields. A table without a
// postcode or date column is unusable and yields a schema error carrying the
// available column names.
func ResolveColumns(header []string) (Columns, error) {
	cols := make(Columns)
	for i, raw := range header {
		field, ok := columnAliases[canonicalizeHeader(raw)]
		if !ok {
			continue
		}
		// First occurrence wins when an export repeats a column
		if _, exists := cols[field]; !exists {
			cols[field] = i
		}
	}

	for _, required := range []string{FieldPostcode, FieldDate} {
		if !cols.Has(required) {
			return nil, apperrors.NewSchemaError(
				fmt.Sprintf("dataset does not contain a %s column", required), nil).
				WithContext("available", append([]string(nil), header...))
		}
	}
	return cols, nil
}

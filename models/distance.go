package models

import (
	"fmt"
	"strconv"
	"strings"
)

// NoDistance is written in place of a distance the API could not compute.
const NoDistance = "NO DISTANCE"

// Meters is a travel distance, or the absence of one. The zero value is
// missing, so a forgotten assignment can never read as 0 m.
type Meters struct {
	Value int
	OK    bool
}

func Distance(m int) Meters { return Meters{Value: m, OK: true} }

func MissingDistance() Meters { return Meters{} }

func (m Meters) String() string {
	if !m.OK {
		return NoDistance
	}
	return strconv.Itoa(m.Value)
}

// ParseMeters reads a value written by Meters.String.
func ParseMeters(s string) (Meters, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, NoDistance) {
		return MissingDistance(), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return Meters{}, fmt.Errorf("meters %q: %w", s, err)
	}
	return Distance(v), nil
}

// Destination is a named point of interest every listing is measured against.
type Destination struct {
	Name    string
	Address string
}

// ConstantPair is a distance between two destinations that does not depend
// on the listing. It is fetched once and broadcast to every export row.
type ConstantPair struct {
	Name string
	From string
	To   string
}

// DistanceRecord is the distance from one cleaned listing to one destination.
type DistanceRecord struct {
	ReferenceNumber int
	OriginAddress   string
	DestinationName string
	Meters          Meters
}

// ExportRow is one cleaned listing joined with its distance columns.
type ExportRow struct {
	Listing   CleanedListing
	Distances map[string]Meters
	Constants map[string]Meters
}

// ExportTable is the final table with its column order fixed.
type ExportTable struct {
	DestinationNames []string
	ConstantNames    []string
	Rows             []ExportRow
}

// ListingColumns lead every export header.
var ListingColumns = []string{"ReferenceNumber", "Address", "Price", "Bedrooms", "Bathrooms", "SquareFeet"}

// Header returns the CSV header for the table.
func (t *ExportTable) Header() []string {
	h := make([]string, 0, len(ListingColumns)+len(t.DestinationNames)+len(t.ConstantNames))
	h = append(h, ListingColumns...)
	h = append(h, t.DestinationNames...)
	h = append(h, t.ConstantNames...)
	return h
}

// Record renders one row in Header order.
func (t *ExportTable) Record(r ExportRow) []string {
	l := r.Listing
	rec := []string{
		strconv.Itoa(l.ReferenceNumber),
		l.Address,
		strconv.Itoa(l.Price),
		strconv.Itoa(l.Bedrooms),
		FormatBathrooms(l.Bathrooms),
		strconv.Itoa(l.SquareFeet),
	}
	for _, name := range t.DestinationNames {
		rec = append(rec, r.Distances[name].String())
	}
	for _, name := range t.ConstantNames {
		rec = append(rec, r.Constants[name].String())
	}
	return rec
}

// Column looks a distance or constant column up by name.
func (r ExportRow) Column(name string) (Meters, bool) {
	if m, ok := r.Distances[name]; ok {
		return m, true
	}
	m, ok := r.Constants[name]
	return m, ok
}

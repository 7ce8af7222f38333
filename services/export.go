package services

import (
	"sort"

	"homescout/models"
)

// Assemble pivots distance records into one column per destination and
// joins them to the cleaned listings by reference number. Listings with no
// records are left out; constant columns are repeated on every row.
func Assemble(listings []models.CleanedListing, dests []models.Destination, records []models.DistanceRecord,
	constantNames []string, constants map[string]models.Meters) *models.ExportTable {

	byRef := make(map[int]map[string]models.Meters, len(listings))
	for _, r := range records {
		row, ok := byRef[r.ReferenceNumber]
		if !ok {
			row = make(map[string]models.Meters, len(dests))
			byRef[r.ReferenceNumber] = row
		}
		row[r.DestinationName] = r.Meters
	}

	names := make([]string, len(dests))
	for i, d := range dests {
		names[i] = d.Name
	}
	sort.Strings(names)

	table := &models.ExportTable{
		DestinationNames: names,
		ConstantNames:    append([]string(nil), constantNames...),
	}
	for _, l := range listings {
		dist, ok := byRef[l.ReferenceNumber]
		if !ok {
			continue
		}
		for _, name := range names {
			if _, ok := dist[name]; !ok {
				dist[name] = models.MissingDistance()
			}
		}
		consts := make(map[string]models.Meters, len(constantNames))
		for _, name := range constantNames {
			consts[name] = constants[name]
		}
		table.Rows = append(table.Rows, models.ExportRow{Listing: l, Distances: dist, Constants: consts})
	}
	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Listing.ReferenceNumber < table.Rows[j].Listing.ReferenceNumber
	})
	return table
}

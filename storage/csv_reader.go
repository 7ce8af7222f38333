package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"homescout/models"
)

// ReadExport loads a table written by CSVWriter. The file does not say which
// trailing columns were destinations and which were constant pairs, so all
// of them come back as destination columns in file order.
func ReadExport(path string) (*models.ExportTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty", path)
	}

	header := records[0]
	n := len(models.ListingColumns)
	if len(header) < n {
		return nil, fmt.Errorf("csv: %s: header has %d columns, want at least %d", path, len(header), n)
	}
	for i, col := range models.ListingColumns {
		if header[i] != col {
			return nil, fmt.Errorf("csv: %s: column %d is %q, want %q", path, i+1, header[i], col)
		}
	}

	table := &models.ExportTable{DestinationNames: append([]string(nil), header[n:]...)}
	for line, rec := range records[1:] {
		row, err := parseRow(rec, table.DestinationNames)
		if err != nil {
			return nil, fmt.Errorf("csv: %s line %d: %w", path, line+2, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseRow(rec []string, distCols []string) (models.ExportRow, error) {
	var (
		l   models.CleanedListing
		err error
	)
	ints := []struct {
		dst  *int
		name string
		raw  string
	}{
		{&l.ReferenceNumber, "ReferenceNumber", rec[0]},
		{&l.Price, "Price", rec[2]},
		{&l.Bedrooms, "Bedrooms", rec[3]},
		{&l.SquareFeet, "SquareFeet", rec[5]},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(f.raw); err != nil {
			return models.ExportRow{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	l.Address = rec[1]
	if l.Bathrooms, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return models.ExportRow{}, fmt.Errorf("Bathrooms: %w", err)
	}

	row := models.ExportRow{Listing: l, Distances: make(map[string]models.Meters, len(distCols))}
	for i, name := range distCols {
		m, err := models.ParseMeters(rec[len(models.ListingColumns)+i])
		if err != nil {
			return models.ExportRow{}, fmt.Errorf("%s: %w", name, err)
		}
		row.Distances[name] = m
	}
	return row, nil
}

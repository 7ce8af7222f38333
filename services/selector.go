package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"homescout/config"
	"homescout/models"
	"homescout/utils"
)

// ErrNoFeasibleHome means no row satisfies the bounds with every distance
// the objective needs.
var ErrNoFeasibleHome = errors.New("selector: no home satisfies the bounds")

// SelectorService picks exactly one home: the feasible row with the least
// weighted weekly travel. Ties go to the lowest reference number.
type SelectorService struct {
	logger *utils.Logger
}

func NewSelectorService(logger *utils.Logger) *SelectorService {
	return &SelectorService{logger: logger}
}

// Select evaluates every row. Unknown column names in the objective are an
// error; a missing distance only makes its row infeasible.
func (s *SelectorService) Select(table *models.ExportTable, bounds config.Bounds, objective []config.Term) (*models.Selection, error) {
	if err := checkColumns(table, objective); err != nil {
		return nil, err
	}

	var best *models.Selection
	feasible := 0
	for _, row := range table.Rows {
		if !withinBounds(row.Listing, bounds) {
			continue
		}
		terms, total, ok := score(row, objective)
		if !ok {
			s.logger.Debug("[selector] Ref %d skipped: a needed distance is missing", row.Listing.ReferenceNumber)
			continue
		}
		feasible++
		if best == nil || total < best.TotalMeters ||
			(total == best.TotalMeters && row.Listing.ReferenceNumber < best.Row.Listing.ReferenceNumber) {
			best = &models.Selection{Row: row, TotalMeters: total, Terms: terms}
		}
	}

	s.logger.Info("[selector] %d of %d homes are feasible", feasible, len(table.Rows))
	if best == nil {
		return nil, ErrNoFeasibleHome
	}
	best.Considered = len(table.Rows)
	best.Feasible = feasible
	return best, nil
}

func checkColumns(table *models.ExportTable, objective []config.Term) error {
	known := make(map[string]bool, len(table.DestinationNames)+len(table.ConstantNames))
	for _, n := range table.DestinationNames {
		known[n] = true
	}
	for _, n := range table.ConstantNames {
		known[n] = true
	}
	var missing []string
	for _, t := range objective {
		for _, c := range t.Columns {
			if !known[c] {
				missing = append(missing, fmt.Sprintf("%s.%s", t.Name, c))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("selector: objective refers to unknown columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func withinBounds(l models.CleanedListing, b config.Bounds) bool {
	bed, bath, sqft := float64(l.Bedrooms), l.Bathrooms, float64(l.SquareFeet)
	return float64(l.Price) <= b.MaxPrice &&
		bed >= b.MinBed && bed <= b.MaxBed &&
		bath >= b.MinBath && bath <= b.MaxBath &&
		sqft >= b.MinSqFt && sqft <= b.MaxSqFt
}

func score(row models.ExportRow, objective []config.Term) ([]models.TermCost, float64, bool) {
	terms := make([]models.TermCost, 0, len(objective))
	var total float64
	for _, t := range objective {
		m, ok := aggregate(row, t)
		if !ok {
			return nil, 0, false
		}
		tc := models.TermCost{Name: t.Name, Weight: t.Weight, Meters: m}
		terms = append(terms, tc)
		total += tc.Weighted()
	}
	return terms, total, true
}

func aggregate(row models.ExportRow, t config.Term) (int, bool) {
	agg := 0
	if t.Aggregate == "min" {
		agg = math.MaxInt
	}
	for _, c := range t.Columns {
		m, ok := row.Column(c)
		if !ok || !m.OK {
			return 0, false
		}
		if t.Aggregate == "min" {
			agg = min(agg, m.Value)
		} else {
			agg += m.Value
		}
	}
	return agg, true
}

// Print writes the breakdown of the chosen home.
func (s *SelectorService) Print(sel *models.Selection) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	l := sel.Row.Listing

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🏠 BEST HOME: reference number %d\033[0m\n", l.ReferenceNumber)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  %s\n", l.Address)
	fmt.Printf("  Feasible homes : %d of %d\n\n", sel.Feasible, sel.Considered)

	fmt.Printf("\033[1;33m  Weekly travel distance (meters / miles)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total : \033[1;32m%d m, %.2f mi\033[0m\n", int(math.Round(sel.TotalMeters)), sel.TotalMiles())
	for _, t := range sel.Terms {
		fmt.Printf("  %-20s %8d m %8.2f mi  × %g\n",
			truncate(t.Name, 20), t.Meters, float64(t.Meters)/models.MetersPerMile, t.Weight)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Home specs\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listing price   : $%d\n", l.Price)
	fmt.Printf("  Square footage  : %d\n", l.SquareFeet)
	fmt.Printf("  Total bedrooms  : %d\n", l.Bedrooms)
	fmt.Printf("  Total bathrooms : %s\n", models.FormatBathrooms(l.Bathrooms))

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

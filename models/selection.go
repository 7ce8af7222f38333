package models

// MetersPerMile converts the objective to miles for display.
const MetersPerMile = 1609.34

// TermCost is one weighted part of a home's weekly travel.
type TermCost struct {
	Name   string
	Weight float64
	Meters int // aggregated distance before weighting
}

// Weighted is the term's contribution to the total.
func (t TermCost) Weighted() float64 { return t.Weight * float64(t.Meters) }

// Selection is the best home and how its score breaks down.
type Selection struct {
	Row         ExportRow
	TotalMeters float64
	Terms       []TermCost
	Considered  int
	Feasible    int
}

// TotalMiles is TotalMeters in miles.
func (s *Selection) TotalMiles() float64 { return s.TotalMeters / MetersPerMile }

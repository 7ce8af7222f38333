package services

import (
	"homescout/models"
	"homescout/utils"
)

// Cleaner turns the scraped table into a set of complete, uniquely
// addressed listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops listings with any unknown field, then removes repeated
// addresses keeping the first occurrence. Survivors are numbered 0..n-1 in
// scrape order.
func (c *Cleaner) Clean(table models.ListingTable) []models.CleanedListing {
	complete := make([]models.CleanedListing, 0, len(table))
	for _, l := range table {
		if !l.Complete() {
			c.logger.Debug("[cleaner] Dropping incomplete listing: %v", l.Strings())
			continue
		}
		complete = append(complete, models.CleanedListing{
			ReferenceNumber: len(complete),
			Address:         l.Address.Value,
			Price:           l.Price.Value,
			Bedrooms:        l.Bedrooms.Value,
			Bathrooms:       l.Bathrooms.Value,
			SquareFeet:      l.SquareFeet.Value,
		})
	}

	seen := make(map[string]int, len(complete))
	result := make([]models.CleanedListing, 0, len(complete))
	for _, l := range complete {
		if first, dup := seen[l.Address]; dup {
			c.logger.Debug("[cleaner] Duplicate address skipped: %s (row %d repeats row %d)",
				l.Address, l.ReferenceNumber, first)
			continue
		}
		seen[l.Address] = l.ReferenceNumber
		l.ReferenceNumber = len(result)
		result = append(result, l)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (%d incomplete, %d duplicate)",
		len(table), len(result), len(table)-len(complete), len(complete)-len(result))
	return result
}

package models

import (
	"slices"
	"strconv"
)

// NotAvailable is how an unknown field is rendered in logs and raw dumps.
const NotAvailable = "N/A"

// Field is a scraped value that may be unknown because the page structure
// did not match what the extractor expected.
type Field[T comparable] struct {
	Value T
	Known bool
}

// Known wraps a successfully parsed value.
func Known[T comparable](v T) Field[T] {
	return Field[T]{Value: v, Known: true}
}

// Unknown is the missing value for T.
func Unknown[T comparable]() Field[T] {
	return Field[T]{}
}

// Listing is one property card scraped from one results page.
type Listing struct {
	Address    Field[string]
	Price      Field[int]
	Bedrooms   Field[int]
	Bathrooms  Field[float64]
	SquareFeet Field[int]
}

// Complete reports whether every field was parsed.
func (l Listing) Complete() bool {
	return l.Address.Known && l.Price.Known && l.Bedrooms.Known &&
		l.Bathrooms.Known && l.SquareFeet.Known
}

// Strings renders address, price, bedrooms, bathrooms, and square feet,
// with NotAvailable for unknown fields.
func (l Listing) Strings() []string {
	return []string{
		fieldString(l.Address, func(s string) string { return s }),
		fieldString(l.Price, strconv.Itoa),
		fieldString(l.Bedrooms, strconv.Itoa),
		fieldString(l.Bathrooms, FormatBathrooms),
		fieldString(l.SquareFeet, strconv.Itoa),
	}
}

func fieldString[T comparable](f Field[T], format func(T) string) string {
	if !f.Known {
		return NotAvailable
	}
	return format(f.Value)
}

// FormatBathrooms prints 2 as "2" and 2.5 as "2.5".
func FormatBathrooms(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ListingPage is the ordered set of listings parsed from one results page.
type ListingPage []Listing

// Equal reports value equality: same listings, same order, same fields.
func (p ListingPage) Equal(other ListingPage) bool {
	return slices.Equal(p, other)
}

// ListingTable accumulates every page in fetch order.
type ListingTable []Listing

// CleanedListing is a listing that survived cleaning. All fields are known
// and Address is unique across the cleaned set.
type CleanedListing struct {
	ReferenceNumber int
	Address         string
	Price           int
	Bedrooms        int
	Bathrooms       float64
	SquareFeet      int
}

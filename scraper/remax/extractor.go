package remax

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"homescout/models"
	"homescout/utils"
)

var (
	// priceRegexp captures a dollar amount such as "$349,900"
	priceRegexp = regexp.MustCompile(`\$[0-9,]+`)
	// lotRegexp flags vacant-lot listings, which have no house to live in:
	// "Lot 4 ...", "LOTS 12-14 ..." and the unspaced "LOT5 ..." but not "Lotus Ave".
	lotRegexp = regexp.MustCompile(`(?i)^LOTS?(?:\b|[0-9])`)
	// intRegexp captures the first whole number
	intRegexp = regexp.MustCompile(`[0-9]+`)
	// decimalRegexp captures the first decimal number such as "2.5"
	decimalRegexp = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	// areaRegexp captures a comma-grouped number such as "1,850"
	areaRegexp = regexp.MustCompile(`[0-9][0-9,]*`)
)

var (
	errMissing   = errors.New("element not found")
	errNoMatch   = errors.New("no value in text")
	errVacantLot = errors.New("vacant lot")
)

// ParseError is one field of one card that did not match the expected
// page structure. It never escapes the extractor: the field becomes unknown.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor turns listing cards into Listings.
type Extractor struct {
	logger *utils.Logger
}

func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractPage returns one Listing per card, in document order.
func (e *Extractor) ExtractPage(doc *goquery.Document) models.ListingPage {
	cards := doc.Find("div.listings-card")
	page := make(models.ListingPage, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		page = append(page, e.ExtractCard(card))
	})
	return page
}

// ExtractCard parses each field independently; a failure in one never
// affects the others.
func (e *Extractor) ExtractCard(card *goquery.Selection) models.Listing {
	details := card.Find("div.card-details").First()
	return models.Listing{
		Address:    parseField(e.logger, "address", details, parseAddress),
		Price:      parseField(e.logger, "price", details, parsePrice),
		Bedrooms:   parseField(e.logger, "bedrooms", details, parseBedrooms),
		Bathrooms:  parseField(e.logger, "bathrooms", details, parseBathrooms),
		SquareFeet: parseField(e.logger, "square feet", details, parseSquareFeet),
	}
}

func parseField[T comparable](logger *utils.Logger, name string, details *goquery.Selection, parse func(*goquery.Selection) (T, error)) models.Field[T] {
	v, err := parse(details)
	if err != nil {
		logger.Debug("[remax] %v", &ParseError{Field: name, Err: err})
		return models.Unknown[T]()
	}
	return models.Known(v)
}

func parseAddress(details *goquery.Selection) (string, error) {
	sel := details.Find("div.card-full-address").First()
	if sel.Length() == 0 {
		return "", errMissing
	}
	addr := cleanText(sel.Text())
	if addr == "" {
		return "", errNoMatch
	}
	if lotRegexp.MatchString(addr) {
		return "", fmt.Errorf("%w: %q", errVacantLot, addr)
	}
	return addr, nil
}

func parsePrice(details *goquery.Selection) (int, error) {
	sel := details.Find("div.card-details-slot").First()
	if sel.Length() == 0 {
		return 0, errMissing
	}
	m := priceRegexp.FindString(sel.Text())
	if m == "" {
		return 0, errNoMatch
	}
	return strconv.Atoi(strings.NewReplacer("$", "", ",", "").Replace(m))
}

// The stats block lists bedrooms, bathrooms, and square feet as a fixed
// sequence of sibling elements starting at the first <p>.
func statText(details *goquery.Selection, pos int) (string, error) {
	first := details.Find("div.card-details-stats").First().Find("p").First()
	if first.Length() == 0 {
		return "", errMissing
	}
	if pos == 0 {
		return first.Text(), nil
	}
	sib := first.NextAll().Eq(pos - 1)
	if sib.Length() == 0 {
		return "", errMissing
	}
	return sib.Text(), nil
}

func parseBedrooms(details *goquery.Selection) (int, error) {
	text, err := statText(details, 0)
	if err != nil {
		return 0, err
	}
	m := intRegexp.FindString(text)
	if m == "" {
		return 0, errNoMatch
	}
	return strconv.Atoi(m)
}

func parseBathrooms(details *goquery.Selection) (float64, error) {
	text, err := statText(details, 1)
	if err != nil {
		return 0, err
	}
	m := decimalRegexp.FindString(text)
	if m == "" {
		return 0, errNoMatch
	}
	return strconv.ParseFloat(m, 64)
}

func parseSquareFeet(details *goquery.Selection) (int, error) {
	text, err := statText(details, 2)
	if err != nil {
		return 0, err
	}
	m := areaRegexp.FindString(text)
	if m == "" {
		return 0, errNoMatch
	}
	return strconv.Atoi(strings.ReplaceAll(m, ",", ""))
}

// cleanText collapses runs of whitespace, including non-breaking spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

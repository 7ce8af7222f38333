package remax

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"homescout/models"
	"homescout/utils"
)

type card struct {
	address string
	price   string
	stats   []string
}

func cardHTML(c card) string {
	var stats strings.Builder
	for _, s := range c.stats {
		fmt.Fprintf(&stats, "<p>%s</p>", s)
	}
	return fmt.Sprintf(`<div class="listings-card"><div class="card-details">
<div class="card-details-slot"><h4>%s</h4></div>
<div class="card-details-slot"><span>Est. payment $1,900</span></div>
<div class="card-details-stats">%s</div>
<div class="card-full-address">%s</div>
</div></div>`, c.price, stats.String(), c.address)
}

func pageHTML(cards ...card) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"results\">")
	for _, c := range cards {
		b.WriteString(cardHTML(c))
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func house(n int) card {
	return card{
		address: fmt.Sprintf("%d Main St, Papillion, NE 68046", n),
		price:   fmt.Sprintf("$%d,000", 200+n),
		stats:   []string{"3 bd", "2.5 ba", "1,850 sqft"},
	}
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestExtractCompleteCard(t *testing.T) {
	e := NewExtractor(utils.Discard())
	page := e.ExtractPage(mustDoc(t, pageHTML(house(7))))

	if len(page) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(page))
	}
	want := models.Listing{
		Address:    models.Known("7 Main St, Papillion, NE 68046"),
		Price:      models.Known(207000),
		Bedrooms:   models.Known(3),
		Bathrooms:  models.Known(2.5),
		SquareFeet: models.Known(1850),
	}
	if page[0] != want {
		t.Errorf("got %+v; want %+v", page[0], want)
	}
}

func TestExtractFieldsFailIndependently(t *testing.T) {
	e := NewExtractor(utils.Discard())

	tests := []struct {
		name  string
		card  card
		check func(models.Listing) bool
	}{
		{
			name: "vacant lot",
			card: card{address: "LOT 12 Prairie View", price: "$75,000", stats: []string{"0 bd", "0 ba", "--"}},
			check: func(l models.Listing) bool {
				return !l.Address.Known && l.Price.Known && l.Price.Value == 75000 && !l.SquareFeet.Known
			},
		},
		{
			name: "lowercase lot",
			card: card{address: "Lot 4, Bellevue NE", price: "$50,000", stats: []string{"1 bd", "1 ba", "900 sqft"}},
			check: func(l models.Listing) bool {
				return !l.Address.Known && l.Bedrooms.Known
			},
		},
		{
			name: "plural lots",
			card: card{address: "LOTS 12-14 Prairie View", price: "$120,000", stats: []string{"0 bd", "0 ba", "--"}},
			check: func(l models.Listing) bool {
				return !l.Address.Known && l.Price.Known && l.Price.Value == 120000
			},
		},
		{
			name: "lot number without space",
			card: card{address: "LOT5 Main St, Gretna", price: "$40,000", stats: []string{"0 bd", "0 ba", "--"}},
			check: func(l models.Listing) bool {
				return !l.Address.Known && l.Price.Known
			},
		},
		{
			name: "uppercase street starting with lot letters",
			card: card{address: "LOTUS AVE 10, PAPILLION", price: "$150,000", stats: []string{"2 bd", "1 ba", "900 sqft"}},
			check: func(l models.Listing) bool {
				return l.Address.Known && l.Address.Value == "LOTUS AVE 10, PAPILLION"
			},
		},
		{
			name: "street starting with lot letters",
			card: card{address: "Lotus Ave 10, Papillion", price: "$150,000", stats: []string{"2 bd", "1 ba", "900 sqft"}},
			check: func(l models.Listing) bool {
				return l.Address.Known && l.Address.Value == "Lotus Ave 10, Papillion"
			},
		},
		{
			name: "empty address",
			card: card{address: "   ", price: "$150,000", stats: []string{"2 bd", "1 ba", "900 sqft"}},
			check: func(l models.Listing) bool {
				return !l.Address.Known && l.Price.Known && l.Bedrooms.Known && l.Bathrooms.Known && l.SquareFeet.Known
			},
		},
		{
			name: "price without dollar sign",
			card: card{address: "1 A St", price: "Contact agent", stats: []string{"2 bd", "1 ba", "900 sqft"}},
			check: func(l models.Listing) bool {
				return !l.Price.Known && l.Address.Known && l.SquareFeet.Value == 900
			},
		},
		{
			name: "missing stats",
			card: card{address: "2 B St", price: "$1,250,000"},
			check: func(l models.Listing) bool {
				return l.Price.Value == 1250000 && !l.Bedrooms.Known && !l.Bathrooms.Known && !l.SquareFeet.Known
			},
		},
		{
			name: "short stats",
			card: card{address: "3 C St", price: "$300,000", stats: []string{"4 bd"}},
			check: func(l models.Listing) bool {
				return l.Bedrooms.Value == 4 && !l.Bathrooms.Known && !l.SquareFeet.Known
			},
		},
		{
			name: "whole bathrooms",
			card: card{address: "4 D St", price: "$300,000", stats: []string{"4 bd", "3 ba", "2,400 sqft"}},
			check: func(l models.Listing) bool {
				return l.Complete() && l.Bathrooms.Value == 3 && l.SquareFeet.Value == 2400
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := e.ExtractPage(mustDoc(t, pageHTML(tt.card)))
			if len(page) != 1 {
				t.Fatalf("expected 1 listing, got %d", len(page))
			}
			if !tt.check(page[0]) {
				t.Errorf("unexpected listing %+v", page[0])
			}
		})
	}
}

func TestExtractEmptyPage(t *testing.T) {
	e := NewExtractor(utils.Discard())
	page := e.ExtractPage(mustDoc(t, "<html><body><p>No results</p></body></html>"))
	if len(page) != 0 {
		t.Errorf("expected no listings, got %d", len(page))
	}
}

func TestParseErrorUnwraps(t *testing.T) {
	err := &ParseError{Field: "address", Err: errVacantLot}
	if !errors.Is(err, errVacantLot) {
		t.Error("ParseError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "address") {
		t.Errorf("error %q should name the field", err.Error())
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		root string
		i    int
		want string
	}{
		{"https://example.com/homes", 1, "https://example.com/homes/page-1"},
		{"https://example.com/homes/", 12, "https://example.com/homes/page-12"},
	}
	for _, tt := range tests {
		if got := PageURL(tt.root, tt.i); got != tt.want {
			t.Errorf("PageURL(%q, %d) = %q; want %q", tt.root, tt.i, got, tt.want)
		}
	}
}

// fakeFetcher serves fixed HTML per URL and counts requests.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls[pageURL]++
	err := f.fail[pageURL]
	html, ok := f.pages[pageURL]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &FetchError{URL: pageURL, StatusCode: http.StatusNotFound}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

const root = "https://example.com/homes"

func newTestPaginator(f PageFetcher, maxPages int, refetch bool) *Paginator {
	retry := &utils.RetryConfig{MaxAttempts: 2, Logger: utils.Discard(), Retryable: IsRetryable}
	return NewPaginator(PaginatorConfig{RootURL: root, MaxPages: maxPages, RefetchPrevious: refetch},
		f, NewExtractor(utils.Discard()), retry, utils.Discard())
}

func TestPaginatorStopsAtRepeatedPage(t *testing.T) {
	for _, refetch := range []bool{true, false} {
		t.Run(fmt.Sprintf("refetch=%v", refetch), func(t *testing.T) {
			f := newFakeFetcher()
			f.pages[PageURL(root, 1)] = pageHTML(house(1), house(2))
			f.pages[PageURL(root, 2)] = pageHTML(house(3))
			f.pages[PageURL(root, 3)] = pageHTML(house(3))

			table, err := newTestPaginator(f, 100, refetch).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(table) != 3 {
				t.Fatalf("expected listings from pages 1-2 only (3), got %d", len(table))
			}
			if table[2].Address.Value != "3 Main St, Papillion, NE 68046" {
				t.Errorf("unexpected last listing %+v", table[2])
			}
			if f.calls[PageURL(root, 4)] != 0 {
				t.Error("page 4 should never be requested")
			}
		})
	}
}

func TestPaginatorSinglePageSite(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(root, 1)] = pageHTML(house(1))
	f.pages[PageURL(root, 2)] = pageHTML(house(1))

	table, err := newTestPaginator(f, 100, true).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(table) != 1 {
		t.Errorf("expected page 1 only, got %d listings", len(table))
	}
}

func TestPaginatorPageLimit(t *testing.T) {
	f := newFakeFetcher()
	for i := 1; i <= 5; i++ {
		f.pages[PageURL(root, i)] = pageHTML(house(i))
	}

	table, err := newTestPaginator(f, 3, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(table) != 3 {
		t.Errorf("expected 3 listings at the page limit, got %d", len(table))
	}
	if f.calls[PageURL(root, 4)] != 0 {
		t.Error("page 4 is past the limit and should not be requested")
	}
}

func TestPaginatorAbortsOnFetchError(t *testing.T) {
	f := newFakeFetcher()
	f.pages[PageURL(root, 1)] = pageHTML(house(1))
	f.fail[PageURL(root, 2)] = &FetchError{URL: PageURL(root, 2), StatusCode: http.StatusForbidden}

	table, err := newTestPaginator(f, 100, true).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if table != nil {
		t.Errorf("expected no partial table, got %d listings", len(table))
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusForbidden {
		t.Errorf("expected a 403 FetchError, got %v", err)
	}
	if f.calls[PageURL(root, 2)] != 1 {
		t.Errorf("403 should not be retried, got %d calls", f.calls[PageURL(root, 2)])
	}
}

func TestPaginatorRetriesTransientErrors(t *testing.T) {
	f := newFakeFetcher()
	f.fail[PageURL(root, 1)] = &FetchError{URL: PageURL(root, 1), StatusCode: http.StatusServiceUnavailable}

	_, err := newTestPaginator(f, 100, true).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if f.calls[PageURL(root, 1)] != 2 {
		t.Errorf("503 should be retried up to MaxAttempts, got %d calls", f.calls[PageURL(root, 1)])
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		switch r.URL.Path {
		case "/homes/page-1":
			fmt.Fprint(w, pageHTML(house(1)))
		case "/homes/page-2":
			http.Error(w, "busy", http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)

	doc, err := f.Fetch(context.Background(), srv.URL+"/homes/page-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := doc.Find("div.listings-card").Length(); n != 1 {
		t.Errorf("expected 1 card, got %d", n)
	}

	tests := []struct {
		path      string
		status    int
		retryable bool
	}{
		{"/homes/page-2", http.StatusTooManyRequests, true},
		{"/missing", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		_, err := f.Fetch(context.Background(), srv.URL+tt.path)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected FetchError, got %v", tt.path, err)
		}
		if fe.StatusCode != tt.status {
			t.Errorf("%s: status = %d; want %d", tt.path, fe.StatusCode, tt.status)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s: IsRetryable = %v; want %v", tt.path, !tt.retryable, tt.retryable)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&FetchError{URL: "u", Err: errors.New("connection reset")}, true},
		{&FetchError{URL: "u", StatusCode: 500}, true},
		{&FetchError{URL: "u", StatusCode: 408}, true},
		{&FetchError{URL: "u", StatusCode: 400}, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}

func TestHTTPFetcherRejectsOversizedPage(t *testing.T) {
	page := pageHTML(house(1), house(2))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	f.maxBytes = int64(len(page))
	doc, err := f.Fetch(context.Background(), srv.URL+"/homes/page-1")
	if err != nil {
		t.Fatalf("page at the limit: %v", err)
	}
	if n := doc.Find("div.listings-card").Length(); n != 2 {
		t.Errorf("expected 2 cards, got %d", n)
	}

	f.maxBytes = int64(len(page)) - 1
	_, err = f.Fetch(context.Background(), srv.URL+"/homes/page-1")
	if !errors.Is(err, ErrPageTooLarge) {
		t.Fatalf("page over the limit: err = %v; want ErrPageTooLarge", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if IsRetryable(err) {
		t.Error("an oversized page should not be retried")
	}
}

func TestFindChromeBinaryIgnoresEnvironment(t *testing.T) {
	const bogus = "/nonexistent/chrome-from-env"
	t.Setenv("CHROME_BIN", bogus)
	if got := findChromeBinary(); got == bogus {
		t.Errorf("findChromeBinary() = %q; the binary path comes from config only", got)
	}
}

// Package discovery produces the ordered candidate list a viewer may browse
// or target, narrowing the full swap inventory through a fixed stage order:
// core exclusions, free-text search, user filters, sort, pagination.
package discovery

import (
	"sort"
	"strings"
	"time"

	"github.com/bookswap/backend/internal/storage/models"
)

// Listing couples a swap with its booking snapshot and the activity counts
// the pipeline and callers need.
type Listing struct {
	Swap                 models.Swap    `json:"swap"`
	Booking              models.Booking `json:"booking"`
	IncomingTargetCount  int            `json:"incoming_target_count"`
	PendingProposalCount int            `json:"pending_proposal_count"`
}

// Sort keys and orders.
const (
	SortByPrice    = "price"
	SortByDate     = "date"
	SortByLocation = "location"
	SortByCreated  = "created"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Swap type filter values.
const (
	TypeBooking = "booking"
	TypeCash    = "cash"
	TypeBoth    = "both"
)

// Params configures a browse. Zero values mean "no constraint". Stage-one
// exclusions are not represented here except RequireOpenForProposals, which
// is a call-site toggle the handler sets per view, never from user input.
type Params struct {
	Query string

	City     string
	Country  string
	MinPrice *float64
	MaxPrice *float64
	SwapType string
	DateFrom *time.Time
	DateTo   *time.Time

	SortBy    string
	SortOrder string

	Page  int
	Limit int

	RequireOpenForProposals bool
}

// Browse runs the full pipeline over the inventory for the given viewer.
// It is pure: identical inputs produce identical, order-stable output. The
// input slice is not mutated.
func Browse(inventory []Listing, viewerID string, p Params) []Listing {
	out := coreFilters(inventory, viewerID, p.RequireOpenForProposals)
	out = textSearch(out, p.Query)
	out = userFilters(out, p)
	out = sortListings(out, p.SortBy, p.SortOrder)
	return paginate(out, p.Page, p.Limit)
}

// coreFilters applies the mandatory exclusions that no user configuration
// can bypass: the viewer's own swaps, swaps backed by a cancelled booking,
// and (when the view demands it) swaps with no incoming activity.
func coreFilters(in []Listing, viewerID string, requireOpen bool) []Listing {
	out := make([]Listing, 0, len(in))
	for _, l := range in {
		if l.Swap.OwnerID == viewerID {
			continue
		}
		if l.Booking.Availability == models.AvailabilityCancelled {
			continue
		}
		if requireOpen && l.IncomingTargetCount == 0 && l.PendingProposalCount == 0 {
			continue
		}
		out = append(out, l)
	}
	return out
}

// textSearch keeps listings where the query appears as a case-insensitive
// substring of the booking's title, description, city, or country. The
// query is matched whole, not tokenized.
func textSearch(in []Listing, query string) []Listing {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return in
	}

	out := make([]Listing, 0, len(in))
	for _, l := range in {
		b := l.Booking
		if strings.Contains(strings.ToLower(b.Title), query) ||
			strings.Contains(strings.ToLower(b.Description), query) ||
			strings.Contains(strings.ToLower(b.City), query) ||
			strings.Contains(strings.ToLower(b.Country), query) {
			out = append(out, l)
		}
	}
	return out
}

func userFilters(in []Listing, p Params) []Listing {
	out := make([]Listing, 0, len(in))
	for _, l := range in {
		if !matchLocation(l.Booking, p.City, p.Country) {
			continue
		}
		if !matchPrice(l, p.MinPrice, p.MaxPrice) {
			continue
		}
		if !matchType(l.Swap, p.SwapType) {
			continue
		}
		if !matchDates(l.Booking, p.DateFrom, p.DateTo) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// matchLocation checks city/country by case-insensitive equality or prefix.
func matchLocation(b models.Booking, city, country string) bool {
	if city != "" && !strings.HasPrefix(strings.ToLower(b.City), strings.ToLower(city)) {
		return false
	}
	if country != "" && !strings.HasPrefix(strings.ToLower(b.Country), strings.ToLower(country)) {
		return false
	}
	return true
}

// matchPrice filters on the effective value: the preferred cash amount for
// cash swaps, the swap value otherwise.
func matchPrice(l Listing, min, max *float64) bool {
	v := l.Swap.EffectiveValue(&l.Booking)
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}

func matchType(s models.Swap, swapType string) bool {
	switch swapType {
	case TypeBooking:
		return !s.IsCashSwap()
	case TypeCash:
		return s.IsCashSwap()
	default:
		return true
	}
}

// matchDates keeps bookings whose stay overlaps the requested range.
func matchDates(b models.Booking, from, to *time.Time) bool {
	if from != nil && b.CheckOut.Before(*from) {
		return false
	}
	if to != nil && b.CheckIn.After(*to) {
		return false
	}
	return true
}

// sortListings orders the listings by the requested key. Ties keep their
// input order; there is no secondary key. Default is created descending.
func sortListings(in []Listing, sortBy, order string) []Listing {
	if sortBy == "" {
		sortBy = SortByCreated
	}
	if order == "" {
		order = OrderDesc
	}

	out := make([]Listing, len(in))
	copy(out, in)

	less := lessFunc(sortBy)
	if order == OrderDesc {
		inner := less
		less = func(a, b Listing) bool { return inner(b, a) }
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(sortBy string) func(a, b Listing) bool {
	switch sortBy {
	case SortByPrice:
		return func(a, b Listing) bool {
			return priceKey(a) < priceKey(b)
		}
	case SortByDate:
		return func(a, b Listing) bool {
			return a.Booking.CheckIn.Before(b.Booking.CheckIn)
		}
	case SortByLocation:
		return func(a, b Listing) bool {
			return a.Booking.Location() < b.Booking.Location()
		}
	default:
		return func(a, b Listing) bool {
			return a.Swap.CreatedAt.Before(b.Swap.CreatedAt)
		}
	}
}

// priceKey is the swap value, falling back to the original price when the
// listing has no swap value.
func priceKey(l Listing) float64 {
	if l.Booking.SwapValue > 0 {
		return l.Booking.SwapValue
	}
	return l.Booking.OriginalPrice
}

// paginate slices the sorted result. Page numbers start at 1; a zero or
// negative limit returns everything.
func paginate(in []Listing, page, limit int) []Listing {
	if limit <= 0 {
		return in
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * limit
	if start >= len(in) {
		return []Listing{}
	}

	end := start + limit
	if end > len(in) {
		end = len(in)
	}
	return in[start:end]
}

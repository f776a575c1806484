package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/backend/internal/storage/models"
)

var baseTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

type listingOpts struct {
	owner     string
	city      string
	country   string
	swapValue float64
	checkIn   time.Time
	created   time.Time
	cash      *models.CashDetails
	cancelled bool
	incoming  int
	pending   int
}

func makeListing(id string, o listingOpts) Listing {
	availability := models.AvailabilityAvailable
	if o.cancelled {
		availability = models.AvailabilityCancelled
	}
	checkIn := o.checkIn
	if checkIn.IsZero() {
		checkIn = baseTime.Add(30 * 24 * time.Hour)
	}
	created := o.created
	if created.IsZero() {
		created = baseTime
	}
	country := o.country
	if country == "" {
		country = "France"
	}
	return Listing{
		Swap: models.Swap{
			ID:        "swap-" + id,
			OwnerID:   o.owner,
			BookingID: "booking-" + id,
			Status:    models.SwapStatusPending,
			Cash:      o.cash,
			CreatedAt: created,
			ExpiresAt: baseTime.Add(90 * 24 * time.Hour),
		},
		Booking: models.Booking{
			ID:            "booking-" + id,
			OwnerID:       o.owner,
			Title:         "Stay in " + o.city,
			Description:   "Weekend break",
			City:          o.city,
			Country:       country,
			CheckIn:       checkIn,
			CheckOut:      checkIn.Add(48 * time.Hour),
			SwapValue:     o.swapValue,
			OriginalPrice: o.swapValue + 50,
			Availability:  availability,
		},
		IncomingTargetCount:  o.incoming,
		PendingProposalCount: o.pending,
	}
}

func ids(listings []Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.Swap.ID
	}
	return out
}

func TestBrowse_CoreExclusions(t *testing.T) {
	inventory := []Listing{
		makeListing("own", listingOpts{owner: "viewer", city: "Paris", swapValue: 100}),
		makeListing("cancelled", listingOpts{owner: "u2", city: "Paris", swapValue: 100, cancelled: true}),
		makeListing("quiet", listingOpts{owner: "u3", city: "Paris", swapValue: 100}),
		makeListing("busy", listingOpts{owner: "u4", city: "Paris", swapValue: 100, incoming: 2}),
	}

	got := Browse(inventory, "viewer", Params{})
	assert.ElementsMatch(t, []string{"swap-quiet", "swap-busy"}, ids(got))

	// The activity gate is a view toggle, not a user filter, and no user
	// parameter reintroduces excluded rows.
	got = Browse(inventory, "viewer", Params{RequireOpenForProposals: true})
	assert.Equal(t, []string{"swap-busy"}, ids(got))

	got = Browse(inventory, "viewer", Params{City: "Paris", Query: "Paris"})
	assert.ElementsMatch(t, []string{"swap-quiet", "swap-busy"}, ids(got))
}

func TestBrowse_TextSearch(t *testing.T) {
	inventory := []Listing{
		makeListing("a", listingOpts{owner: "u1", city: "Paris", swapValue: 100}),
		makeListing("b", listingOpts{owner: "u2", city: "Lisbon", country: "Portugal", swapValue: 100}),
	}

	got := Browse(inventory, "viewer", Params{Query: "lisbon"})
	require.Equal(t, []string{"swap-b"}, ids(got))

	got = Browse(inventory, "viewer", Params{Query: "PORTU"})
	require.Equal(t, []string{"swap-b"}, ids(got))

	// The query matches whole, not per token.
	got = Browse(inventory, "viewer", Params{Query: "lisbon paris"})
	require.Empty(t, got)
}

func TestBrowse_UserFilters(t *testing.T) {
	cash := &models.CashDetails{MinAmount: 200, MaxAmount: 400, PreferredAmount: 300, Currency: "EUR"}
	inventory := []Listing{
		makeListing("cheap", listingOpts{owner: "u1", city: "Paris", swapValue: 80}),
		makeListing("mid", listingOpts{owner: "u2", city: "Lyon", swapValue: 150}),
		makeListing("cash", listingOpts{owner: "u3", city: "Paris", swapValue: 500, cash: cash}),
	}

	min, max := 100.0, 350.0
	got := Browse(inventory, "viewer", Params{MinPrice: &min, MaxPrice: &max})
	// The cash listing filters on its preferred amount, not the swap value.
	assert.ElementsMatch(t, []string{"swap-mid", "swap-cash"}, ids(got))

	got = Browse(inventory, "viewer", Params{SwapType: TypeCash})
	assert.Equal(t, []string{"swap-cash"}, ids(got))

	got = Browse(inventory, "viewer", Params{SwapType: TypeBooking})
	assert.ElementsMatch(t, []string{"swap-cheap", "swap-mid"}, ids(got))

	got = Browse(inventory, "viewer", Params{City: "par"})
	assert.ElementsMatch(t, []string{"swap-cheap", "swap-cash"}, ids(got))
}

func TestBrowse_DateOverlap(t *testing.T) {
	june := makeListing("june", listingOpts{owner: "u1", city: "Paris", swapValue: 100,
		checkIn: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)})
	august := makeListing("august", listingOpts{owner: "u2", city: "Paris", swapValue: 100,
		checkIn: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)})
	inventory := []Listing{june, august}

	from := time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)

	// A stay already underway at the range start still overlaps.
	got := Browse(inventory, "viewer", Params{DateFrom: &from, DateTo: &to})
	require.Equal(t, []string{"swap-june"}, ids(got))

	got = Browse(inventory, "viewer", Params{DateFrom: &from})
	assert.ElementsMatch(t, []string{"swap-june", "swap-august"}, ids(got))
}

func TestBrowse_Sorting(t *testing.T) {
	inventory := []Listing{
		makeListing("a", listingOpts{owner: "u1", city: "Berlin", country: "Germany", swapValue: 300,
			created: baseTime.Add(1 * time.Hour)}),
		makeListing("b", listingOpts{owner: "u2", city: "Amsterdam", country: "Netherlands", swapValue: 100,
			created: baseTime.Add(3 * time.Hour)}),
		makeListing("c", listingOpts{owner: "u3", city: "Zagreb", country: "Croatia", swapValue: 200,
			created: baseTime.Add(2 * time.Hour)}),
	}

	// Default: newest listing first.
	got := Browse(inventory, "viewer", Params{})
	assert.Equal(t, []string{"swap-b", "swap-c", "swap-a"}, ids(got))

	got = Browse(inventory, "viewer", Params{SortBy: SortByPrice, SortOrder: OrderAsc})
	assert.Equal(t, []string{"swap-b", "swap-c", "swap-a"}, ids(got))

	got = Browse(inventory, "viewer", Params{SortBy: SortByPrice, SortOrder: OrderDesc})
	assert.Equal(t, []string{"swap-a", "swap-c", "swap-b"}, ids(got))

	got = Browse(inventory, "viewer", Params{SortBy: SortByLocation, SortOrder: OrderAsc})
	assert.Equal(t, []string{"swap-b", "swap-a", "swap-c"}, ids(got))

	got = Browse(inventory, "viewer", Params{SortBy: SortByCreated, SortOrder: OrderAsc})
	assert.Equal(t, []string{"swap-a", "swap-c", "swap-b"}, ids(got))
}

func TestBrowse_SortStability(t *testing.T) {
	// Equal prices keep their input order under a stable sort.
	inventory := []Listing{
		makeListing("a", listingOpts{owner: "u1", city: "Paris", swapValue: 100}),
		makeListing("b", listingOpts{owner: "u2", city: "Paris", swapValue: 100}),
		makeListing("c", listingOpts{owner: "u3", city: "Paris", swapValue: 100}),
	}

	got := Browse(inventory, "viewer", Params{SortBy: SortByPrice, SortOrder: OrderAsc})
	assert.Equal(t, []string{"swap-a", "swap-b", "swap-c"}, ids(got))
}

func TestBrowse_Pagination(t *testing.T) {
	var inventory []Listing
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		inventory = append(inventory, makeListing(id, listingOpts{owner: "u-" + id, city: "Paris", swapValue: 100}))
	}

	p := Params{SortBy: SortByCreated, SortOrder: OrderAsc, Limit: 2}

	p.Page = 1
	assert.Equal(t, []string{"swap-a", "swap-b"}, ids(Browse(inventory, "viewer", p)))
	p.Page = 3
	assert.Equal(t, []string{"swap-e"}, ids(Browse(inventory, "viewer", p)))
	p.Page = 4
	assert.Empty(t, Browse(inventory, "viewer", p))

	// Zero limit returns everything.
	p.Page, p.Limit = 1, 0
	assert.Len(t, Browse(inventory, "viewer", p), 5)
}

func TestBrowse_Deterministic(t *testing.T) {
	inventory := []Listing{
		makeListing("a", listingOpts{owner: "u1", city: "Paris", swapValue: 100}),
		makeListing("b", listingOpts{owner: "u2", city: "Lyon", swapValue: 100}),
		makeListing("c", listingOpts{owner: "u3", city: "Nice", swapValue: 100}),
	}
	p := Params{SortBy: SortByPrice, SortOrder: OrderAsc}

	first := Browse(inventory, "viewer", p)
	second := Browse(inventory, "viewer", p)
	require.Equal(t, ids(first), ids(second))

	// The input slice is left untouched.
	assert.Equal(t, "swap-a", inventory[0].Swap.ID)
}

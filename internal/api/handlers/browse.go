package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bookswap/backend/internal/api/middleware"
	"github.com/bookswap/backend/internal/discovery"
)

// BrowseResponse wraps the page of listings with its paging metadata.
type BrowseResponse struct {
	Listings []discovery.Listing `json:"listings"`
	Page     int                 `json:"page"`
	Limit    int                 `json:"limit"`
}

// Browse returns the filtered, sorted, paginated candidate list for the
// viewer. The open-for-proposals exclusion is decided here per view, never
// by a query parameter.
func Browse(browseService *discovery.BrowseService, defaultLimit, maxLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := requireActor(w, r)
		if viewer == "" {
			return
		}

		params, err := parseBrowseParams(r, defaultLimit, maxLimit)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		listings, err := browseService.Browse(r.Context(), viewer, params)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load inventory")
			return
		}

		if listings == nil {
			listings = []discovery.Listing{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(BrowseResponse{
			Listings: listings,
			Page:     params.Page,
			Limit:    params.Limit,
		})
	}
}

func parseBrowseParams(r *http.Request, defaultLimit, maxLimit int) (discovery.Params, error) {
	q := r.URL.Query()

	params := discovery.Params{
		Query:     q.Get("q"),
		City:      q.Get("city"),
		Country:   q.Get("country"),
		SwapType:  q.Get("type"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
		Page:      1,
		Limit:     defaultLimit,
	}

	var err error
	if params.MinPrice, err = parseFloat(q.Get("min_price")); err != nil {
		return params, err
	}
	if params.MaxPrice, err = parseFloat(q.Get("max_price")); err != nil {
		return params, err
	}
	if params.DateFrom, err = parseDate(q.Get("from")); err != nil {
		return params, err
	}
	if params.DateTo, err = parseDate(q.Get("to")); err != nil {
		return params, err
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, errBadParam("page", v)
		}
		params.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, errBadParam("limit", v)
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		params.Limit = limit
	}

	return params, nil
}

func parseFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errBadParam("price", v)
	}
	return &f, nil
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, errBadParam("date", v)
	}
	return &t, nil
}

type paramError struct {
	name, value string
}

func (e paramError) Error() string {
	return "invalid " + e.name + " parameter: " + e.value
}

func errBadParam(name, value string) error {
	return paramError{name: name, value: value}
}

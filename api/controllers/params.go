package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/statistics"
)

// parseRange reads the start and end query values. A bare end date covers
// that whole day.
func parseRange(r *http.Request) (orders.DateRange, error) {
	start, err := validators.ParseQueryTime(r, "start", time.Local)
	if err != nil {
		return orders.DateRange{}, err
	}
	end, err := validators.ParseQueryTime(r, "end", time.Local)
	if err != nil {
		return orders.DateRange{}, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); len(raw) == len("2006-01-02") {
		end = statistics.EndOfDay(end)
	}
	return orders.DateRange{Start: start, End: end}, nil
}

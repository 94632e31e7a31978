package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shelfpos/api/responses"
	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/statistics"
	"github.com/angelmondragon/shelfpos/internal/statistics/dashboard"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

const maxRankLimit = 1000

// SalesStatistics buckets order totals by day, week or month.
func SalesStatistics(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		interval, err := statistics.ParseInterval(r.URL.Query().Get("interval"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}
		points, err := svc.GetSalesStatistics(r.Context(), rng, interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, points)
	}
}

func TopProducts(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", statistics.DefaultRankLimit, 1, maxRankLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rng, err := parseRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		top, err := svc.GetTopProducts(r.Context(), limit, rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, top)
	}
}

// Dashboard defaults to the last seven days. productId narrows the figures
// to one product; "all" or empty keeps every product.
func Dashboard(svc *dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", statistics.DefaultRankLimit, 1, maxRankLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID := strings.TrimSpace(r.URL.Query().Get("productId"))
		if productID == statistics.AllProducts {
			productID = ""
		}
		d, err := svc.Build(r.Context(), dashboard.Query{
			Start:     rng.Start,
			End:       rng.End,
			ProductID: productID,
			Limit:     limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, d)
	}
}

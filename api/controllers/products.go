package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shelfpos/api/responses"
	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/products"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/pagination"
)

const maxKeywordLen = 100

// ListProducts serves the catalog page: page, pageSize (a number or "all"),
// keyword, categoryId ("uncategorized" for none), sortBy and sortOrder.
func ListProducts(svc products.Service, defaultPageSize int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := pagination.Parse(q.Get("page"), q.Get("pageSize"), defaultPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}
		result, err := svc.GetProductList(r.Context(), products.ListQuery{
			Page:       page,
			Keyword:    validators.SanitizeString(q.Get("keyword"), maxKeywordLen),
			CategoryID: strings.TrimSpace(q.Get("categoryId")),
			SortBy:     strings.TrimSpace(q.Get("sortBy")),
			SortOrder:  strings.TrimSpace(q.Get("sortOrder")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

func GetProductByBarcode(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		barcode := chi.URLParam(r, "barcode")
		p, err := svc.GetByBarcode(r.Context(), barcode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if p == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no product with this barcode"))
			return
		}
		responses.WriteSuccess(w, p)
	}
}

func CreateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input products.Input
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := svc.Add(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, p)
	}
}

func UpdateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch products.Patch
		if err := validators.DecodeJSONBody(w, r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

func DeleteProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type bulkProductsRequest struct {
	Products []products.Input `json:"products"`
}

// BulkCreateProducts adds {"products": [...]} one by one and reports which
// were created and which were skipped.
func BulkCreateProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload bulkProductsRequest
		if err := validators.DecodeJSON(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidFormat, "products array is required"))
			return
		}
		res, err := products.BulkAdd(r.Context(), svc, payload.Products)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"succeeded": len(res.Succeeded),
			"skipped":   len(res.Skipped),
		}), "bulk product import finished")
		responses.WriteSuccess(w, res)
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shelfpos/api/responses"
	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/checkout"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

// scanRequest adds by barcode or, when the cashier picks from the list,
// by product id.
type scanRequest struct {
	Barcode   string `json:"barcode" validate:"required_without=ProductID"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func GetCart(svc *checkout.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Cart().View())
	}
}

func ScanItem(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload scanRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var err error
		if payload.Barcode != "" {
			_, err = svc.Scan(r.Context(), payload.Barcode, payload.Quantity)
		} else {
			_, err = svc.AddProduct(r.Context(), payload.ProductID, payload.Quantity)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.Cart().View())
	}
}

// SetCartQuantity replaces a line's quantity; zero or less removes it.
func SetCartQuantity(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload quantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !svc.Cart().SetQuantity(chi.URLParam(r, "productId"), payload.Quantity) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart"))
			return
		}
		responses.WriteSuccess(w, svc.Cart().View())
	}
}

func RemoveCartItem(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Cart().Remove(chi.URLParam(r, "productId")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart"))
			return
		}
		responses.WriteSuccess(w, svc.Cart().View())
	}
}

func ClearCart(svc *checkout.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Cart().Clear()
		responses.WriteSuccess(w, svc.Cart().View())
	}
}

func SubmitCart(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := svc.Submit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, details)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront-backend/api/middleware"
	"github.com/storefront-labs/storefront-backend/api/responses"
	"github.com/storefront-labs/storefront-backend/api/validators"
	productsvc "github.com/storefront-labs/storefront-backend/internal/products"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

const (
	msgProductNotFound = "Product not found"
	maxSearchLength    = 100
)

// ListProducts serves the filtered catalog.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func parseListFilters(r *http.Request) (productsvc.ListFilters, error) {
	q := r.URL.Query()

	limit, err := validators.QueryInt(r, "limit", 0, 0, productsvc.MaxListLimit)
	if err != nil {
		return productsvc.ListFilters{}, err
	}

	// minPrince is a misspelling older storefront clients still send.
	minRaw := q.Get("minPrice")
	if strings.TrimSpace(minRaw) == "" {
		minRaw = q.Get("minPrince")
	}
	minPrice, err := parsePrice(minRaw, "minPrice")
	if err != nil {
		return productsvc.ListFilters{}, err
	}
	maxPrice, err := parsePrice(q.Get("maxPrice"), "maxPrice")
	if err != nil {
		return productsvc.ListFilters{}, err
	}

	sortBy, err := productsvc.ParseSortBy(q.Get("sortBy"))
	if err != nil {
		return productsvc.ListFilters{}, err
	}

	var gender enums.Gender
	if raw := strings.TrimSpace(q.Get("gender")); raw != "" {
		gender, err = enums.ParseGender(raw)
		if err != nil {
			return productsvc.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gender")
		}
	}

	return productsvc.ListFilters{
		Collection: strings.TrimSpace(q.Get("collection")),
		Category:   strings.TrimSpace(q.Get("category")),
		Materials:  productsvc.SplitList(q.Get("material")),
		Brands:     productsvc.SplitList(q.Get("brand")),
		Sizes:      productsvc.SplitList(q.Get("size")),
		Colors:     productsvc.SplitList(q.Get("color")),
		Gender:     gender,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Search:     validators.QueryText(r, "search", maxSearchLength),
		SortBy:     sortBy,
		Limit:      limit,
	}, nil
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be numeric").WithDetails(map[string]any{"field": field})
	}
	return &value, nil
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", msgProductNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func BestSeller(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.BestSeller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func NewArrivals(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.NewArrivals(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SimilarProducts lists products sharing gender and category with the given one.
func SimilarProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", msgProductNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Similar(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminListProducts includes unpublished products.
func AdminListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.AdminList(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// UpdateProduct applies a partial update: absent fields keep their stored values.
func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", msgProductNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id", msgProductNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteMessage(w, http.StatusOK, "Product removed")
	}
}

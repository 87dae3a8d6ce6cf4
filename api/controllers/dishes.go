package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/api/middleware"
	"github.com/minhtran-dev/savora-backend/api/responses"
	"github.com/minhtran-dev/savora-backend/api/validators"
	catalogsvc "github.com/minhtran-dev/savora-backend/internal/catalog"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// ListDishes pages through a branch's dishes.
func ListDishes(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, err := validators.ParseQueryUUID(r, "branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := middleware.EffectiveBranchID(r.Context(), requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, cursor, err := svc.ListDishes(r.Context(), catalogsvc.ListInput{
			BranchID: branchID,
			Page: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

type createDishRequest struct {
	BranchID    string  `json:"branch_id" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	BasePrice   int64   `json:"base_price" validate:"min=0"`
}

// CreateDish registers a dish in its branch.
func CreateDish(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDishRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := uuid.Parse(payload.BranchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid branch id"))
			return
		}
		if err := middleware.EnsureBranchAccess(r.Context(), branchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dish, err := svc.CreateDish(r.Context(), catalogsvc.CreateDishInput{
			BranchID:    branchID,
			Name:        payload.Name,
			Description: payload.Description,
			BasePrice:   payload.BasePrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dish)
	}
}

// GetDish fetches one dish by id.
func GetDish(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "dishId"), "dishId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dish, err := svc.GetDish(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dish)
	}
}

type updateDishRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BasePrice   *int64  `json:"base_price,omitempty" validate:"omitempty,min=0"`
}

// UpdateDish applies partial updates to a dish.
func UpdateDish(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "dishId"), "dishId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateDishRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dish, err := svc.UpdateDish(r.Context(), id, catalogsvc.UpdateDishInput{
			Name:        payload.Name,
			Description: payload.Description,
			BasePrice:   payload.BasePrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dish)
	}
}

// DeleteDish removes a dish.
func DeleteDish(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "dishId"), "dishId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteDish(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type availabilityRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetDishAvailability flips a dish and cascades into its combos.
func SetDishAvailability(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "dishId"), "dishId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseAvailabilityStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid availability status"))
			return
		}
		if err := svc.SetDishAvailability(r.Context(), id, status, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}

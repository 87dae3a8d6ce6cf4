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

// ListCombos pages through a branch's combos.
func ListCombos(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		items, cursor, err := svc.ListCombos(r.Context(), catalogsvc.ListInput{
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

type comboItemRequest struct {
	DishID   string `json:"dish_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type createComboRequest struct {
	BranchID    string             `json:"branch_id" validate:"required,uuid"`
	Name        string             `json:"name" validate:"required"`
	Description *string            `json:"description,omitempty"`
	BasePrice   int64              `json:"base_price" validate:"min=0"`
	Items       []comboItemRequest `json:"items" validate:"required,min=1,dive"`
}

func toComboItems(items []comboItemRequest) ([]catalogsvc.ComboItemInput, error) {
	out := make([]catalogsvc.ComboItemInput, 0, len(items))
	for _, item := range items {
		dishID, err := uuid.Parse(item.DishID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dish id").WithDetails(map[string]any{"dish_id": item.DishID})
		}
		out = append(out, catalogsvc.ComboItemInput{DishID: dishID, Quantity: item.Quantity})
	}
	return out, nil
}

// CreateCombo registers a combo with its member lines.
func CreateCombo(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createComboRequest
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
		items, err := toComboItems(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		combo, err := svc.CreateCombo(r.Context(), catalogsvc.CreateComboInput{
			BranchID:    branchID,
			Name:        payload.Name,
			Description: payload.Description,
			BasePrice:   payload.BasePrice,
			Items:       items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, combo)
	}
}

// GetCombo fetches one combo by id.
func GetCombo(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		combo, err := svc.GetCombo(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, combo)
	}
}

type updateComboRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BasePrice   *int64  `json:"base_price,omitempty" validate:"omitempty,min=0"`
}

// UpdateCombo applies partial header updates to a combo.
func UpdateCombo(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateComboRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		combo, err := svc.UpdateCombo(r.Context(), id, catalogsvc.UpdateComboInput{
			Name:        payload.Name,
			Description: payload.Description,
			BasePrice:   payload.BasePrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, combo)
	}
}

// DeleteCombo removes a combo.
func DeleteCombo(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCombo(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type replaceComboItemsRequest struct {
	Items []comboItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReplaceComboItems swaps the combo's member lines and re-derives availability.
func ReplaceComboItems(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload replaceComboItemsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := toComboItems(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		combo, err := svc.ReplaceComboItems(r.Context(), id, items, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, combo)
	}
}

// SetComboAvailability pins the combo's availability, overriding the cascade.
func SetComboAvailability(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
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
		if err := svc.SetComboAvailability(r.Context(), id, status, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}

// ResetComboAvailability lifts a manual pin and re-derives from members.
func ResetComboAvailability(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "comboId"), "comboId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ResetComboAvailability(r.Context(), id, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "derived"})
	}
}

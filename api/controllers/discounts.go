package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhtran-dev/savora-backend/api/middleware"
	"github.com/minhtran-dev/savora-backend/api/responses"
	"github.com/minhtran-dev/savora-backend/api/validators"
	discountsvc "github.com/minhtran-dev/savora-backend/internal/discounts"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

// ListDiscounts returns a branch's discounts, optionally filtered by status.
func ListDiscounts(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		statuses, err := parseStatusFilter(r.URL.Query().Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, cursor, err := svc.List(r.Context(), discountsvc.ListDiscountsInput{
			BranchID: branchID,
			Statuses: statuses,
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

func parseStatusFilter(raw string) ([]enums.DiscountStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var statuses []enums.DiscountStatus
	for _, part := range strings.Split(raw, ",") {
		status, err := enums.ParseDiscountStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

type createDiscountRequest struct {
	BranchID    string    `json:"branch_id" validate:"required,uuid"`
	Code        *string   `json:"code,omitempty"`
	Name        string    `json:"name" validate:"required"`
	Description *string   `json:"description,omitempty"`
	NewPrice    int64     `json:"new_price" validate:"min=0"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Type        string    `json:"type" validate:"required"`
	DishID      *string   `json:"dish_id,omitempty" validate:"omitempty,uuid"`
	ComboID     *string   `json:"combo_id,omitempty" validate:"omitempty,uuid"`
}

func (p createDiscountRequest) toInput() (discountsvc.CreateDiscountInput, error) {
	branchID, err := uuid.Parse(p.BranchID)
	if err != nil {
		return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid branch id")
	}
	discountType, err := enums.ParseDiscountType(strings.TrimSpace(p.Type))
	if err != nil {
		return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	dishID, err := parseOptionalUUID(p.DishID, "dish_id")
	if err != nil {
		return discountsvc.CreateDiscountInput{}, err
	}
	comboID, err := parseOptionalUUID(p.ComboID, "combo_id")
	if err != nil {
		return discountsvc.CreateDiscountInput{}, err
	}
	return discountsvc.CreateDiscountInput{
		BranchID:    branchID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		NewPrice:    p.NewPrice,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Type:        discountType,
		DishID:      dishID,
		ComboID:     comboID,
	}, nil
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid uuid").WithDetails(map[string]any{"field": field})
	}
	return &value, nil
}

// CreateDiscount registers a discount in its branch.
func CreateDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := middleware.EnsureBranchAccess(r.Context(), input.BranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, discount)
	}
}

// GetDiscount fetches one discount by id.
func GetDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "discountId"), "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := middleware.EnsureBranchAccess(r.Context(), discount.BranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, discount)
	}
}

type updateDiscountRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Code        *string    `json:"code,omitempty"`
	NewPrice    *int64     `json:"new_price,omitempty" validate:"omitempty,min=0"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// UpdateDiscount applies partial updates to a discount.
func UpdateDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "discountId"), "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := svc.Update(r.Context(), id, discountsvc.UpdateDiscountInput{
			Name:        payload.Name,
			Description: payload.Description,
			Code:        payload.Code,
			NewPrice:    payload.NewPrice,
			StartDate:   payload.StartDate,
			EndDate:     payload.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, discount)
	}
}

// DeleteDiscount removes a discount and releases its bindings.
func DeleteDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "discountId"), "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ApplyDiscount activates a discount against its target now, displacing any
// predecessor.
func ApplyDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "discountId"), "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Apply(r.Context(), id, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhtran-dev/savora-backend/api/middleware"
	"github.com/minhtran-dev/savora-backend/api/responses"
	"github.com/minhtran-dev/savora-backend/api/validators"
	ordersvc "github.com/minhtran-dev/savora-backend/internal/orders"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	pkgerrors "github.com/minhtran-dev/savora-backend/pkg/errors"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/pagination"
)

type orderItemRequest struct {
	DishID          *string          `json:"dish_id,omitempty" validate:"omitempty,uuid"`
	ComboID         *string          `json:"combo_id,omitempty" validate:"omitempty,uuid"`
	Quantity        int              `json:"quantity" validate:"required,min=1"`
	UnitPrice       *int64           `json:"unit_price,omitempty" validate:"omitempty,min=0"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
}

func (p orderItemRequest) toInput() (ordersvc.OrderItemInput, error) {
	dishID, err := parseOptionalUUID(p.DishID, "dish_id")
	if err != nil {
		return ordersvc.OrderItemInput{}, err
	}
	comboID, err := parseOptionalUUID(p.ComboID, "combo_id")
	if err != nil {
		return ordersvc.OrderItemInput{}, err
	}
	return ordersvc.OrderItemInput{
		DishID:            dishID,
		ComboID:           comboID,
		Quantity:          p.Quantity,
		UnitPriceOverride: p.UnitPrice,
		DiscountPercent:   p.DiscountPercent,
	}, nil
}

type createOrderRequest struct {
	BranchID    string             `json:"branch_id" validate:"required,uuid"`
	SessionID   *string            `json:"session_id,omitempty"`
	VoucherCode *string            `json:"voucher_code,omitempty"`
	Note        *string            `json:"note,omitempty"`
	Items       []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrder opens an order with its lines priced at submission time.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createOrderRequest
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
		items := make([]ordersvc.OrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			input, err := item.toInput()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, input)
		}

		input := ordersvc.CreateOrderInput{
			BranchID:    branchID,
			SessionID:   payload.SessionID,
			VoucherCode: payload.VoucherCode,
			Note:        payload.Note,
			Items:       items,
		}
		if payload.SessionID == nil {
			if accountID := middleware.AccountIDFromContext(r.Context()); accountID != uuid.Nil {
				input.AccountID = &accountID
			}
		}

		order, err := svc.Create(r.Context(), input, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// GetOrder fetches one order with its lines.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := middleware.EnsureBranchAccess(r.Context(), order.BranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListOrders pages through a branch's orders.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		items, cursor, err := svc.List(r.Context(), ordersvc.ListOrdersInput{
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

// AddOrderItem appends a line to a pending order.
func AddOrderItem(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload orderItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AddItem(r.Context(), orderID, input, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type updateOrderItemRequest struct {
	Quantity        int              `json:"quantity" validate:"required,min=1"`
	UnitPrice       *int64           `json:"unit_price,omitempty" validate:"omitempty,min=0"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
}

// UpdateOrderItem re-prices a pending line against current catalog state.
func UpdateOrderItem(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateOrderItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateItem(r.Context(), orderID, itemID, ordersvc.UpdateOrderItemInput{
			Quantity:          payload.Quantity,
			UnitPriceOverride: payload.UnitPrice,
			DiscountPercent:   payload.DiscountPercent,
		}, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RemoveOrderItem deletes a pending line and recomputes the total.
func RemoveOrderItem(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RemoveItem(r.Context(), orderID, itemID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetOrderItemStatus moves one line through its lifecycle.
func SetOrderItemStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload itemStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderItemStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item status"))
			return
		}
		order, err := svc.SetItemStatus(r.Context(), orderID, itemID, status, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetOrderStatus moves the order header through its lifecycle.
func SetOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}
		order, err := svc.UpdateStatus(r.Context(), orderID, status, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// GetOrderTotal recomputes the authoritative total from the lines.
func GetOrderTotal(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := svc.AuthoritativeTotal(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "total_amount": total})
	}
}

package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, model order.CreateOrderModel) (*order.Order, error)
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int64 `json:"quantity"  validate:"gt=0"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	ShippingID int64                      `json:"shippingId" validate:"gt=0"`
	Items      []itemInCreateOrderRequest `json:"items"      validate:"required,min=1,dive"`
}

func (r *createOrderRequest) toModel(userID int64) order.CreateOrderModel {
	items := make([]order.CreateOrderItemModel, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, order.CreateOrderItemModel{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	return order.CreateOrderModel{
		UserID:     userID,
		ShippingID: r.ShippingID,
		Items:      items,
	}
}

// CreateOrder handles the create order request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid X-User-Id header", http.StatusUnauthorized)

		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	created, err := service.Create(r.Context(), req.toModel(userID))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error creating order", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		slog.Error("Error writing response for create order", "error", err)
	}
}

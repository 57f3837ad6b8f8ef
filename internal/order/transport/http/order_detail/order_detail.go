package orderdetail

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/go-chi/chi/v5"
)

type service interface {
	Detail(ctx context.Context, userID, orderNo int64) (*order.Order, error)
}

func OrderDetail(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid X-User-Id header", http.StatusUnauthorized)

		return
	}

	orderNo, err := strconv.ParseInt(chi.URLParam(r, "orderNo"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order number", http.StatusBadRequest)

		return
	}

	ord, err := service.Detail(r.Context(), userID, orderNo)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error getting order detail", "order_no", orderNo, "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ord); err != nil {
		slog.Error("Error writing response for order detail", "error", err)
	}
}

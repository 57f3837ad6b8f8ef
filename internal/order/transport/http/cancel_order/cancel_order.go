package cancelorder

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/mall/internal/apperr"
	"github.com/go-chi/chi/v5"
)

type service interface {
	Cancel(ctx context.Context, userID, orderNo int64) error
}

func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
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

	if err := service.Cancel(r.Context(), userID, orderNo); err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error canceling order", "order_no", orderNo, "error", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

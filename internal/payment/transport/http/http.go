package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/payment/service/models/payinfo"
	"github.com/corray333/mall/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type service interface {
	Create(ctx context.Context, orderNo int64, amount decimal.Decimal) (*payinfo.PayInfo, error)
	AsyncNotify(ctx context.Context, n payinfo.Notification) error
	Query(ctx context.Context, orderNo int64) (*payinfo.PayInfo, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

func NewHTTPTransport(service service) *HTTPTransport {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	server := &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}

	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/pay", h.createPay)
		r.Post("/pay/notify", h.asyncNotify)
		r.Get("/pay/{orderNo}", h.queryPay)
	})
}

type createPayRequest struct {
	OrderNo int64  `json:"orderNo" validate:"gt=0"`
	Amount  string `json:"amount"  validate:"required"`
}

func (h *HTTPTransport) createPay(w http.ResponseWriter, r *http.Request) {
	var req createPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for create pay", "error", err)

		return
	}

	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)

		return
	}

	info, err := h.service.Create(r.Context(), req.OrderNo, amount)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error creating pay info", "order_no", req.OrderNo, "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("Error writing response for create pay", "error", err)
	}
}

type notifyRequest struct {
	OrderNo        int64  `json:"orderNo"        validate:"gt=0"`
	PlatformStatus string `json:"platformStatus" validate:"required"`
	PlatformNumber string `json:"platformNumber"`
	Amount         string `json:"amount"         validate:"required"`
}

func (h *HTTPTransport) asyncNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for notify", "error", err)

		return
	}

	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)

		return
	}

	err = h.service.AsyncNotify(r.Context(), payinfo.Notification{
		OrderNo:        req.OrderNo,
		PlatformStatus: req.PlatformStatus,
		PlatformNumber: req.PlatformNumber,
		Amount:         amount,
	})
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error handling gateway notification", "order_no", req.OrderNo, "error", err)

		return
	}

	// The gateway keeps retrying the callback until it sees "success".
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("success")); err != nil {
		slog.Error("Error writing response for notify", "error", err)
	}
}

func (h *HTTPTransport) queryPay(w http.ResponseWriter, r *http.Request) {
	orderNo, err := strconv.ParseInt(chi.URLParam(r, "orderNo"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order number", http.StatusBadRequest)

		return
	}

	info, err := h.service.Query(r.Context(), orderNo)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		slog.Error("Error querying pay info", "order_no", orderNo, "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("Error writing response for query pay", "error", err)
	}
}

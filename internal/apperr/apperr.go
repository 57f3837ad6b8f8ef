package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusConflict = errors.New("order status conflict")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductNotOnSale    = errors.New("product is not on sale")
	ErrPayInfoNotFound     = errors.New("pay info not found")
	ErrAmountMismatch      = errors.New("notified amount does not match pay info")
)

// HTTPStatus maps a domain error to an HTTP response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrPayInfoNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrOrderStatusConflict):
		return http.StatusConflict

	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrProductNotOnSale),
		errors.Is(err, ErrAmountMismatch):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

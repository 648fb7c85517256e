package api

import (
	"errors"

	"StockScreener/internal/domain/models"
	xhttp "StockScreener/pkg/http"
)

// appError maps domain errors onto HTTP statuses.
func appError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidTimeFrame), errors.Is(err, models.ErrInvalidRequest):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrJobNotFound), errors.Is(err, models.ErrNoData):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamFetch):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"

	"futurescli/internal/bars"
	"futurescli/internal/constmaturity"
	"futurescli/internal/continuous"
	apierrors "futurescli/internal/errors"
	"futurescli/internal/marketdata"
	"futurescli/internal/rollspec"
	"futurescli/internal/skew"
)

var (
	// ErrNoSource is returned when a request needs market data but the
	// service was built without a source (no API key).
	ErrNoSource = errors.New("no market data source configured")

	ErrNoData       = errors.New("no data returned")
	ErrUnknownModel = errors.New("unknown pricing model")
	ErrUnknownFit   = errors.New("unknown smile fit")
)

// classify wraps err in the AppError type matching its cause. Errors that
// already carry an HTTP meaning pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apierrors.AppError
	var apiErr *apierrors.APIError
	if errors.As(err, &appErr) || errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := op + " failed"
	var upstream *marketdata.APIError
	switch {
	case errors.Is(err, rollspec.ErrInvalidSymbol),
		errors.Is(err, rollspec.ErrInvalidRange),
		errors.Is(err, continuous.ErrUnknownMethod),
		errors.Is(err, bars.ErrInvalidInterval),
		errors.Is(err, ErrUnknownModel),
		errors.Is(err, ErrUnknownFit):
		return apierrors.NewAppValidationError(msg, err)

	case errors.Is(err, marketdata.ErrNotFound):
		return apierrors.NewAppError(apierrors.ErrTypeNotFound, fmt.Sprintf("%s: %v", op, err), err)

	case errors.Is(err, ErrNoSource), errors.Is(err, marketdata.ErrNoAPIKey):
		return apierrors.NewConfigError(op+" needs a Databento API key", err)

	case errors.As(err, &upstream), errors.Is(err, marketdata.ErrTransport):
		return apierrors.NewNetworkError(msg, err)

	case errors.Is(err, marketdata.ErrMissingColumn):
		return apierrors.NewParsingError(msg, err)

	case errors.Is(err, continuous.ErrUnknownInstrument),
		errors.Is(err, continuous.ErrEmptySegment),
		errors.Is(err, continuous.ErrMissingRollPrice),
		errors.Is(err, continuous.ErrMissingColumn),
		errors.Is(err, continuous.ErrZeroPrice),
		errors.Is(err, constmaturity.ErrMissingInstrument),
		errors.Is(err, constmaturity.ErrZeroSpan),
		errors.Is(err, constmaturity.ErrMissingExpiration),
		errors.Is(err, skew.ErrTooFewPoints),
		errors.Is(err, skew.ErrLengthMismatch),
		errors.Is(err, skew.ErrFit),
		errors.Is(err, ErrNoData):
		return apierrors.NewDataError(msg, err)
	}

	// Unclassified errors are answered as internal failures.
	return err
}

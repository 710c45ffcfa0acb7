package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/auth"
	"portfolio/api/internal/contact"
	"portfolio/api/internal/github"
	"portfolio/api/internal/portfolio"
	"portfolio/api/internal/validation"
)

const errorFallbackMessage = "We couldn't process your request right now."

func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, portfolio.ErrNotFound), eris.Is(err, contact.ErrNotFound):
		return stdhttp.StatusNotFound, "resource not found"
	case eris.Is(err, portfolio.ErrConflict):
		return stdhttp.StatusConflict, "a record with the same unique value already exists"
	case eris.Is(err, auth.ErrInvalidState):
		return stdhttp.StatusBadRequest, "login state is invalid or expired"
	case eris.Is(err, auth.ErrUnauthorized):
		return stdhttp.StatusUnauthorized, "authentication failed"
	case eris.Is(err, auth.ErrForbidden):
		return stdhttp.StatusForbidden, "this account is not allowed to administer the site"
	case eris.Is(err, auth.ErrNotConfigured):
		return stdhttp.StatusServiceUnavailable, "admin login is not configured"
	case eris.Is(err, github.ErrUnavailable):
		return stdhttp.StatusServiceUnavailable, "data unavailable"
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

// toHTTPError converts a service error into a Huma status error, recording unexpected failures.
func (s *Server) toHTTPError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return huma.Error422UnprocessableEntity("validation failed", validationDetails(verr)...)
	}

	status, public := classifyError(err)
	if status >= stdhttp.StatusInternalServerError && status != stdhttp.StatusServiceUnavailable {
		s.recordError(ctx, err, message, fields)
	}
	return huma.NewError(status, public)
}

func validationDetails(verr *validation.Error) []error {
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]error, 0, len(fields))
	for _, field := range fields {
		details = append(details, &huma.ErrorDetail{
			Location: "body." + field,
			Message:  verr.Fields[field],
		})
	}
	return details
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

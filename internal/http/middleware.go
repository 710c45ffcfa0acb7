package http

import (
	"context"
	"fmt"
	"math"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/auth"
)

const (
	rateLimitMessage        = "Too many requests. Please wait a moment and try again."
	contactRateLimitMessage = "Too many messages from this address. Please try again later."
	sentryFlushTimeout      = 2 * time.Second
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := strings.TrimSpace(ctx.Header("X-Request-ID"))
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) clientIPMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := ClientIP(req, s.trustedProxies)
		next(huma.WithValue(ctx, clientIPContextKey, ip))
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return s.limitBy(s.rateLimiter, "", rateLimitMessage)
}

// contactRateLimit is attached to the contact form operation only.
func (s *Server) contactRateLimit() func(huma.Context, func(huma.Context)) {
	return s.limitBy(s.contactRateLimiter, "contact:", contactRateLimitMessage)
}

func (s *Server) limitBy(limiter *RateLimiter, prefix, message string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if limiter == nil {
			next(ctx)
			return
		}

		ip := ClientIPFromContext(ctx.Context())
		allowed, retryAfter := limiter.Allow(prefix + ip)
		if allowed {
			next(ctx)
			return
		}

		if s.logger != nil {
			fields := logrus.Fields{
				"ip":      ip,
				"limiter": strings.TrimSuffix(prefix, ":"),
			}
			if op := ctx.Operation(); op != nil {
				fields["route"] = op.Path
			}
			if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithFields(fields).Warn("request rate limited")
		}

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		ctx.SetHeader("Retry-After", strconv.Itoa(seconds))
		_ = huma.WriteErr(s.api, ctx, stdhttp.StatusTooManyRequests, message)
	}
}

// authMiddleware attaches session claims for valid bearer tokens. Invalid or missing tokens
// leave the request anonymous; admin operations reject those via requireAdmin.
func (s *Server) authMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := auth.BearerToken(ctx.Header("Authorization"))
		if !ok || s.auth == nil || !s.auth.Configured() {
			next(ctx)
			return
		}

		claims, err := s.auth.Authenticate(ctx.Context(), token)
		if err != nil {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{
					"error":      err.Error(),
					"request_id": RequestIDFromContext(ctx.Context()),
				}).Debug("ignoring invalid bearer token")
			}
			next(ctx)
			return
		}

		goCtx := context.WithValue(ctx.Context(), claimsContextKey, claims)
		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: claims.UserID(), Username: claims.Login})
		}
		next(huma.WithContext(ctx, goCtx))
	}
}

// requireAdmin is attached to admin operations.
func (s *Server) requireAdmin(ctx huma.Context, next func(huma.Context)) {
	if s.auth == nil || !s.auth.Configured() {
		_ = huma.WriteErr(s.api, ctx, stdhttp.StatusServiceUnavailable, "admin login is not configured")
		return
	}

	if ClaimsFromContext(ctx.Context()) == nil {
		ctx.SetHeader("WWW-Authenticate", `Bearer realm="portfolio"`)
		_ = huma.WriteErr(s.api, ctx, stdhttp.StatusUnauthorized, "authentication required")
		return
	}

	next(ctx)
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"client_ip":   ClientIPFromContext(ctx.Context()),
		}

		if op := ctx.Operation(); op != nil {
			fields["route"] = op.Path
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
		}

		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		if claims := ClaimsFromContext(ctx.Context()); claims != nil {
			fields["admin"] = claims.Login
		}

		entry := s.logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(sentryFlushTimeout)
				}

				_ = huma.WriteErr(s.api, ctx, stdhttp.StatusInternalServerError, "internal server error")
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(sentryFlushTimeout)

		next(ctx)
	}
}

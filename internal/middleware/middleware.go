package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"poke-arena/internal/constants"
	"poke-arena/internal/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserKey      contextKey = "user"
)

const (
	UserIDHeader   = "X-User-ID"
	UserNameHeader = "X-User-Name"
)

// https://github.com/gin-contrib/requestid
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

			loggerWithID := logger.With().Str("request_id", requestID).Logger()
			ctx = loggerWithID.WithContext(ctx)

			loggerWithID.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request started")

			next.ServeHTTP(w, r.WithContext(ctx))

			duration := time.Since(start)
			loggerWithID.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("duration_ms", duration.Milliseconds()).
				Msg("request completed")
		})
	}
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

type PresenceToucher interface {
	Touch(userID, displayName string)
}

// Identity requires the identity headers set by the auth layer in front of
// the server and refreshes the caller's presence.
func Identity(presence PresenceToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if id == "" {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			// the bot id is never a human identity
			if strings.EqualFold(id, constants.BotID) {
				writeMessage(w, http.StatusForbidden, "User id is reserved")
				return
			}

			name := strings.TrimSpace(r.Header.Get(UserNameHeader))
			if name == "" {
				name = id
			}
			user := domain.Participant{ID: id, Name: name}
			presence.Touch(user.ID, user.Name)

			ctx := context.WithValue(r.Context(), UserKey, user)
			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", id)
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func GetUser(ctx context.Context) (domain.Participant, bool) {
	user, ok := ctx.Value(UserKey).(domain.Participant)
	return user, ok
}

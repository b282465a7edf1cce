package commerceapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type ctxKey string

const ctxAccount ctxKey = "account"

func accountFrom(ctx context.Context) string {
	account, _ := ctx.Value(ctxAccount).(string)
	return account
}

func requestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), reqID)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			ctx = logg.WithFields(ctx, map[string]any{
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			logg.Info(ctx, "request.complete")
		})
	}
}

func recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					writeError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requireAccount resolves the bearer token to an account subject.
func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		token := raw
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token == "" {
			writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		claims, err := auth.InspectToken(s.jwt, token, s.now())
		if err != nil {
			writeError(r.Context(), s.logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
			return
		}
		account := claims.Account()
		ctx := context.WithValue(r.Context(), ctxAccount, account)
		ctx = s.logg.WithAccount(ctx, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Fault is a one-shot failure served instead of the next matching request.
type Fault struct {
	Status  int
	Message string
	Delay   time.Duration
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// InjectFault queues fault for the next request to method and path, for
// example ("DELETE", "/api/cart/item").
func (s *Server) InjectFault(method, path string, fault Fault) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	key := faultKey(method, path)
	s.faults[key] = append(s.faults[key], fault)
}

func (s *Server) nextFault(r *http.Request) (Fault, bool) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	key := faultKey(r.Method, r.URL.Path)
	queued := s.faults[key]
	if len(queued) == 0 {
		return Fault{}, false
	}
	s.faults[key] = queued[1:]
	return queued[0], true
}

func (s *Server) faultInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fault, ok := s.nextFault(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if fault.Status == 0 {
			next.ServeHTTP(w, r)
			return
		}
		s.logg.Info(r.Context(), "serving injected fault")
		writeJSON(w, fault.Status, failureEnvelope{Success: false, Error: fault.Message})
	})
}

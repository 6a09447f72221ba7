package server

import (
	"context"
	"crypto/sha256"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"estatehub/internal/apperror"
	"estatehub/internal/model"
)

const maxJSONBodyBytes = 1 << 20

type userContextKey struct{}
type userContext struct {
	user    model.User
	tokenID string
}

type traceContextKey struct{}
type traceContext struct {
	traceID string
}

func setUserContext(ctx context.Context, uc userContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uc)
}
func getUserContext(ctx context.Context) (userContext, error) {
	uc, ok := ctx.Value(userContextKey{}).(userContext)
	if !ok {
		return uc, apperror.Authentication("Authentication required")
	}
	return uc, nil
}

func setTraceContext(ctx context.Context, tc traceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}
func getTraceContext(ctx context.Context) traceContext {
	tc, _ := ctx.Value(traceContextKey{}).(traceContext)
	return tc
}

// maxBytesMw caps JSON bodies. Multipart uploads are capped by their handler.
func (s Server) maxBytesMw(next http.Handler) http.Handler {
	limited := http.MaxBytesHandler(next, maxJSONBodyBytes)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

func (s Server) loggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := uuid.NewString()
		s.Logger.Debugf("loggingMw: New incoming request %s %s from %s, UA: %s, Host: %#v, TraceID: %s",
			r.Method, r.URL.Path, r.RemoteAddr, r.UserAgent(), r.Host, traceID)

		r = r.WithContext(setTraceContext(r.Context(), traceContext{traceID: traceID}))
		defer func() {
			if re := recover(); re != nil {
				s.Logger.Errorf("loggingMw: Handler crashed, err: %v, TraceID: %s, stack trace:\n%s", re, traceID, debug.Stack())
				s.writeError(w, r, "loggingMw", apperror.Unhandled(errors.Errorf("panic: %v", re)))
			}
		}()

		next.ServeHTTP(w, r)

		s.Logger.Tracef("loggingMw: Incoming request %s %s took %dms, TraceID: %s",
			r.Method, r.URL.Path, time.Since(start).Milliseconds(), traceID)
	})
}

// bearerToken reads the login token from the Authorization header, or from
// the access_token query parameter for websocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func (s Server) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		unauthorized := apperror.Authentication("Authentication required")

		lt := bearerToken(r)
		if lt == "" {
			s.writeError(w, r, "authMw", unauthorized)
			return
		}
		token, err := jwt.Parse([]byte(lt), jwt.WithKey(jwa.HS256, s.AuthSecretKey), jwt.WithValidate(true))
		if err != nil {
			s.Logger.Debugf("authMw: Failed to validate login token, err: %v, TraceID: %s", err, tid)
			s.writeError(w, r, "authMw", unauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(token.Subject())
		if err != nil || token.JwtID() == "" {
			s.Logger.Errorf("authMw: Valid token has malformed claims, sub: %s, TraceID: %s", token.Subject(), tid)
			s.writeError(w, r, "authMw", unauthorized)
			return
		}

		u, err := s.DB.UserFindByID(r.Context(), userID)
		if err != nil {
			s.Logger.Debugf("authMw: Error finding User from login token, err: %v, TraceID: %s", err, tid)
			s.writeError(w, r, "authMw", unauthorized)
			return
		}

		tokenHash := sha256.Sum256([]byte(lt))
		for _, t := range u.LoginTokens {
			if t.TokenID != token.JwtID() {
				continue
			}
			if err = bcrypt.CompareHashAndPassword(t.Token, tokenHash[:]); err != nil {
				s.Logger.Debugf("authMw: Error when comparing LoginToken hashes for UserID: %s, TokenID: %s, err: %v, TraceID: %s",
					u.ID.Hex(), t.TokenID, err, tid)
				break
			}
			s.Logger.Debugf("authMw: UserID: %s, TokenID: %s, TraceID: %s", u.ID.Hex(), t.TokenID, tid)
			next.ServeHTTP(w, r.WithContext(setUserContext(r.Context(), userContext{user: u, tokenID: t.TokenID})))
			return
		}
		s.writeError(w, r, "authMw", unauthorized)
	})
}

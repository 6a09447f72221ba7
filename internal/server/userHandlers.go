package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"estatehub/internal/apperror"
	"estatehub/internal/client"
	"estatehub/internal/database"
	"estatehub/internal/model"
	"estatehub/internal/otp"
)

const loginTokenTTL = 90 * 24 * time.Hour

type loginResponse struct {
	LoginToken string     `json:"loginToken"`
	User       model.User `json:"user"`
}

func (s Server) userRegister() http.HandlerFunc {
	type request struct {
		Name     string        `json:"name" validate:"required"`
		Email    string        `json:"email" validate:"required,email"`
		Password string        `json:"password" validate:"required,min=8"`
		Phone    string        `json:"phone" validate:"omitempty,phone"`
		Address  model.Address `json:"address"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "userRegister", err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := model.Validate(req); err != nil {
			s.writeError(w, r, "userRegister", err)
			return
		}
		password, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.writeError(w, r, "userRegister", errors.Wrap(err, "error generating bcrypt from password"))
			return
		}

		u := model.User{
			Name:     req.Name,
			Email:    req.Email,
			Password: password,
			Phone:    req.Phone,
			Address:  req.Address,
		}
		u.ID, err = s.DB.UserInsert(r.Context(), u)
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				s.writeError(w, r, "userRegister", apperror.Conflict("Email already registered"))
				return
			}
			s.writeError(w, r, "userRegister", storeError(err, "User"))
			return
		}

		lt, err := s.issueLoginToken(r.Context(), u.ID)
		if err != nil {
			s.writeError(w, r, "userRegister", err)
			return
		}
		s.writeData(w, "User registered", loginResponse{LoginToken: lt, User: u}, http.StatusCreated)
	}
}

func (s Server) userLogin() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "userLogin", err)
			return
		}
		invalid := apperror.Authentication("Invalid email or password")

		u, err := s.DB.UserFindByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.writeError(w, r, "userLogin", invalid)
				return
			}
			s.writeError(w, r, "userLogin", storeError(err, "User"))
			return
		}
		if err = bcrypt.CompareHashAndPassword(u.Password, []byte(req.Password)); err != nil {
			s.writeError(w, r, "userLogin", invalid)
			return
		}

		lt, err := s.issueLoginToken(r.Context(), u.ID)
		if err != nil {
			s.writeError(w, r, "userLogin", err)
			return
		}
		s.writeData(w, "Logged in", loginResponse{LoginToken: lt, User: u}, http.StatusOK)
	}
}

func (s Server) userLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "userLogout", err)
			return
		}
		if err = s.DB.UserRemoveLoginToken(r.Context(), uc.user.ID, uc.tokenID); err != nil {
			s.writeError(w, r, "userLogout", storeError(err, "Login token"))
			return
		}
		s.writeData(w, "Logged out", nil, http.StatusOK)
	}
}

func (s Server) userInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "userInfo", err)
			return
		}
		s.writeData(w, "", uc.user, http.StatusOK)
	}
}

// userPasswordForgot always answers with a request id so the endpoint cannot
// be used to probe which emails are registered.
func (s Server) userPasswordForgot() http.HandlerFunc {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	type response struct {
		RequestID string `json:"requestId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "userPasswordForgot", err)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := model.Validate(req); err != nil {
			s.writeError(w, r, "userPasswordForgot", err)
			return
		}

		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				s.writeError(w, r, "userPasswordForgot", storeError(err, "User"))
				return
			}
			s.Logger.Debugf("userPasswordForgot: No User with email: %s, TraceID: %s", req.Email, tid)
			s.writeData(w, "If the account exists a code has been sent", response{RequestID: uuid.NewString()}, http.StatusOK)
			return
		}

		requestID, code, err := s.OTP.Issue(r.Context(), u.ID.Hex())
		if err != nil {
			s.writeError(w, r, "userPasswordForgot", err)
			return
		}
		if u.FCMToken == "" {
			s.Logger.Warnf("userPasswordForgot: User: %s has no push token, OTP cannot be delivered, TraceID: %s", u.ID.Hex(), tid)
		} else {
			res := s.fanOut(r.Context(), tid, client.PushMessage{
				Tokens: []string{u.FCMToken},
				Title:  "Password reset code",
				Body:   "Your verification code is " + code,
				Data:   map[string]string{"type": "otp", "requestId": requestID},
			})
			s.Logger.Infof("userPasswordForgot: OTP delivery for User: %s, sent: %d, failed: %d, TraceID: %s",
				u.ID.Hex(), res.Sent, res.Failed, tid)
		}
		s.writeData(w, "If the account exists a code has been sent", response{RequestID: requestID}, http.StatusOK)
	}
}

func (s Server) userPasswordReset() http.HandlerFunc {
	type request struct {
		RequestID string `json:"requestId" validate:"required"`
		Code      string `json:"code" validate:"required,numeric,len=6"`
		Password  string `json:"password" validate:"required,min=8"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, "userPasswordReset", err)
			return
		}
		if err := model.Validate(req); err != nil {
			s.writeError(w, r, "userPasswordReset", err)
			return
		}

		subject, err := s.OTP.Verify(r.Context(), req.RequestID, req.Code)
		switch {
		case errors.Is(err, otp.ErrExpired):
			s.writeError(w, r, "userPasswordReset", apperror.Validation("Code expired or already used"))
			return
		case errors.Is(err, otp.ErrInvalidCode):
			s.writeError(w, r, "userPasswordReset", apperror.Validation("Invalid code"))
			return
		case errors.Is(err, otp.ErrTooManyAttempts):
			s.writeError(w, r, "userPasswordReset", apperror.Validation("Too many attempts, request a new code"))
			return
		case err != nil:
			s.writeError(w, r, "userPasswordReset", err)
			return
		}

		userID, err := primitive.ObjectIDFromHex(subject)
		if err != nil {
			s.writeError(w, r, "userPasswordReset", errors.Wrapf(err, "OTP subject is not a User ID: %s", subject))
			return
		}
		password, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.writeError(w, r, "userPasswordReset", errors.Wrap(err, "error generating bcrypt from password"))
			return
		}
		if err = s.DB.UserPasswordUpdate(r.Context(), userID, password); err != nil {
			s.writeError(w, r, "userPasswordReset", storeError(err, "User"))
			return
		}
		s.writeData(w, "Password updated", nil, http.StatusOK)
	}
}

func (s Server) issueLoginToken(ctx context.Context, userID primitive.ObjectID) (string, error) {
	lt, tokenID, exp, tokenHash, err := s.createLoginTokenAndHash(userID.Hex())
	if err != nil {
		return "", err
	}
	err = s.DB.UserAddLoginToken(ctx, userID, model.LoginToken{
		TokenID:    tokenID,
		Token:      tokenHash,
		Expiration: primitive.NewDateTimeFromTime(exp),
	})
	if err != nil {
		return "", storeError(err, "User")
	}
	return lt, nil
}

func (s Server) createLoginTokenAndHash(userID string) (string, string, time.Time, []byte, error) {
	exp := time.Now().Add(loginTokenTTL)
	tokenID := uuid.NewString()
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", "", exp, nil, errors.Wrapf(err, "error generating salt for login token for UserID: %s", userID)
	}
	t, err := jwt.NewBuilder().
		Subject(userID).
		Issuer("estatehub").
		JwtID(tokenID).
		IssuedAt(time.Now()).
		Expiration(exp).
		Claim("s", base64.StdEncoding.EncodeToString(salt)).
		Build()
	if err != nil {
		return "", "", exp, nil, errors.Wrapf(err, "error creating login token for UserID: %s", userID)
	}
	lt, err := jwt.Sign(t, jwt.WithKey(jwa.HS256, s.AuthSecretKey))
	if err != nil {
		return "", "", exp, nil, errors.Wrapf(err, "error signing login token for UserID: %s", userID)
	}
	tokenHash := sha256.Sum256(lt)
	bcryptTokenHash, err := bcrypt.GenerateFromPassword(tokenHash[:], bcrypt.DefaultCost-3)
	if err != nil {
		return "", "", exp, nil, errors.Wrapf(err, "error generating bcrypt from login token hash for UserID: %s", userID)
	}
	return string(lt), tokenID, t.Expiration(), bcryptTokenHash, nil
}

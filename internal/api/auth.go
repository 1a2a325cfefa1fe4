package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// authMiddleware validates the Bearer token and stores the user ID in
// the request context. When no JWT secret is configured, requests pass
// through unauthenticated (single-user/demo deployments).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := &jwt.RegisteredClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		})
		if err != nil || !tok.Valid || claims.Subject == "" {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userID returns the authenticated user's ID, or "" when auth is off.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (s *Server) issueToken(uid string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.tokenTTLHours) * time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  flow.User `json:"user"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if s.users == nil || len(s.jwtSecret) == 0 {
		respondError(w, http.StatusServiceUnavailable, "auth is not configured")
		return
	}

	var req authRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if _, err := s.users.GetByEmail(r.Context(), req.Email); err == nil {
		respondError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	user := &flow.User{
		ID:           flow.GenerateID("user"),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: *user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.users == nil || len(s.jwtSecret) == 0 {
		respondError(w, http.StatusServiceUnavailable, "auth is not configured")
		return
	}

	var req authRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: *user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var patch struct {
		Name         *string `json:"name"`
		BusinessType *string `json:"business_type"`
	}
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.BusinessType != nil {
		user.BusinessType = *patch.BusinessType
	}
	if err := s.users.Update(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*flow.User, bool) {
	if s.users == nil {
		respondError(w, http.StatusServiceUnavailable, "auth is not configured")
		return nil, false
	}
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	user, err := s.users.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "account no longer exists")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return nil, false
	}
	return user, true
}

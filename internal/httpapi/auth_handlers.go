package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"casaro.io/internal/audit"
	"casaro.io/internal/auth"
	"casaro.io/internal/authsvc"
	"casaro.io/internal/events"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            string `json:"role"`
}

type identityResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type credentialsResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  identityResponse `json:"identity"`
}

func identityBody(id auth.Identity) identityResponse {
	return identityResponse{
		ID:        id.ID,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Role:      string(id.Role),
	}
}

func (a *API) mintCredentials(id auth.Identity) (credentialsResponse, error) {
	token, exp, err := a.issuer.Mint(id, a.sessionTTL)
	if err != nil {
		return credentialsResponse{}, err
	}
	return credentialsResponse{Token: token, ExpiresAt: exp, Identity: identityBody(id)}, nil
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.login.rejected", map[string]any{"email": email})
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	creds, err := a.mintCredentials(user.Identity(time.Now().UTC()))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"email": email, "role": string(user.Role)})
	a.publish(events.TypeLogin, user)
	writeJSON(w, http.StatusOK, creds)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, _ := auth.ParseRole(req.Role)
	reg := authsvc.Registration{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            role,
	}
	if err := reg.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	user := &auth.User{
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Role:         role,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	creds, err := a.mintCredentials(user.Identity(time.Now().UTC()))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{"email": user.Email, "role": string(user.Role)})
	a.publish(events.TypeRegistered, user)
	writeJSON(w, http.StatusCreated, creds)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := auth.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if _, err := a.users.FindByEmail(r.Context(), email); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	// Reset mail delivery is out of process; the API only acknowledges.
	_ = audit.LogEvent(r.Context(), "auth.password.reset_requested", map[string]any{"email": email})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	// withAuth already verified the bearer token.
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	creds, err := a.mintCredentials(id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", nil)
	if a.bus != nil {
		a.bus.Publish(events.Event{Type: events.TypeRefreshed, UserID: id.ID, Email: id.Email, Role: id.Role})
	}
	writeJSON(w, http.StatusOK, creds)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, identityBody(id))
}

func (a *API) publish(t events.Type, user *auth.User) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(events.Event{Type: t, UserID: user.ID, Email: user.Email, Role: user.Role})
}

// validationMessage strips the sentinel prefix so clients see only the
// displayable detail.
func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, authsvc.ErrValidation.Error()+": "); ok {
		return rest
	}
	return msg
}

package user

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/session"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

type UserHandler struct {
	service  IUserService
	sessions session.ISessionRepository
	validate *validator.Validate
}

func NewUserHandler(service IUserService, sessions session.ISessionRepository) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// LoginPage handles GET /login.
func (h *UserHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderForm(w, "Sign in", "/login", r.URL.Query().Get("return_to"), false)
}

// RegisterPage handles GET /register.
func (h *UserHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderForm(w, "Create account", "/register", r.URL.Query().Get("return_to"), true)
}

// Login handles POST /login. On success a session is created and the
// browser is sent back to where it came from, normally the authorization
// endpoint with its original query intact.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	if err := r.ParseForm(); err != nil {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "invalid form body",
		}, err)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "username and password are required",
		}, errors.New("missing credentials in form"))
		return
	}

	u, err := h.service.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			res.ResponseJsonError(http.StatusUnauthorized, map[string]any{
				"error": "invalid credentials",
			}, err)
			return
		}
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "login failed",
		}, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), session.Session{
		UserID:   u.ID,
		Username: u.Username,
	})
	if err != nil {
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "login failed",
		}, err)
		return
	}

	session.SetCookie(w, token)
	res.Redirect(safeReturnTo(r.PostFormValue("return_to")))
}

// Register handles POST /register. A fresh account signs in immediately.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	if err := r.ParseForm(); err != nil {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "invalid form body",
		}, err)
		return
	}

	req := RegisterRequest{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validate.Struct(req); err != nil {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "invalid registration details",
		}, err)
		return
	}

	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			res.ResponseJsonError(http.StatusConflict, map[string]any{
				"error": "username or email already taken",
			}, err)
			return
		}
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "registration failed",
		}, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), session.Session{
		UserID:   u.ID,
		Username: u.Username,
	})
	if err != nil {
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "registration failed",
		}, err)
		return
	}

	session.SetCookie(w, token)
	res.Redirect(safeReturnTo(r.PostFormValue("return_to")))
}

// Logout handles POST /logout.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		h.sessions.Destroy(r.Context(), cookie.Value)
	}

	session.ClearCookie(w)
	res.ResponseJson(http.StatusOK, map[string]any{"status": "signed out"})
}

// safeReturnTo only allows local paths so the login form cannot be turned
// into an open redirect.
func safeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

func renderForm(w http.ResponseWriter, title, action, returnTo string, withEmail bool) {
	emailField := ""
	if withEmail {
		emailField = `<label>Email <input type="email" name="email" required></label>`
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body>
<h1>%[1]s</h1>
<form method="post" action="%[2]s">
<label>Username <input type="text" name="username" required></label>
%[3]s
<label>Password <input type="password" name="password" required></label>
<input type="hidden" name="return_to" value="%[4]s">
<button type="submit">%[1]s</button>
</form>
</body>
</html>`, html.EscapeString(title), html.EscapeString(action), emailField, html.EscapeString(returnTo))
}

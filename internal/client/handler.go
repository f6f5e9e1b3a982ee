package client

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

type ClientHandler struct {
	service  IClientService
	validate *validator.Validate
}

func NewClientHandler(service IClientService) *ClientHandler {
	return &ClientHandler{
		service:  service,
		validate: validator.New(),
	}
}

// Register handles POST /clients.
func (h *ClientHandler) Register(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "invalid request body",
		}, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "at least one redirect URI is required",
		}, err)
		return
	}

	created, err := h.service.Register(r.Context(), req)
	if err != nil {
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "failed to register client",
		}, err)
		return
	}

	res.ResponseJson(http.StatusCreated, created, logger.MaskingRule{
		Field: "body.client_secret", Type: logger.MaskingTypeFull,
	})
}

// Get handles GET /clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	clientID := r.PathValue("id")
	if clientID == "" {
		res.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error": "missing client id",
		}, errors.New("empty id path value"))
		return
	}

	found, err := h.service.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			res.ResponseJsonError(http.StatusNotFound, map[string]any{
				"error": "client not found",
			}, err)
			return
		}
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "failed to load client",
		}, err)
		return
	}

	res.ResponseJson(http.StatusOK, found)
}

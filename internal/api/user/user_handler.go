package user

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"usersvc/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
	GetCityAgeStats(w http.ResponseWriter, r *http.Request)
	CreateUser(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	responder   *api.Responder
	logger      *slog.Logger
}

func NewHandlerImpl(userService UserService, responder *api.Responder, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		responder:   responder,
		logger:      logger,
	}
}

type listResponse struct {
	Success    bool   `json:"success"`
	Users      []User `json:"users"`
	Page       int64  `json:"page"`
	PageSize   int64  `json:"pageSize"`
	TotalUsers int64  `json:"totalUsers"`
	TotalPages int64  `json:"totalPages"`
}

type statsResponse struct {
	Success bool          `json:"success"`
	Stats   []CityAgeStat `json:"stats"`
}

type userResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListUsers handles GET /users with page/pageSize/sortField/sortOrder query
// parameters. Invalid numeric parameters fall back to the defaults; they
// never produce an error.
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListUsers"))

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 10)
	sortField := r.URL.Query().Get("sortField")
	if sortField == "" {
		sortField = "createdAt"
	}
	sortOrder := r.URL.Query().Get("sortOrder")
	if sortOrder == "" {
		sortOrder = "desc"
	}

	l.InfoContext(ctx, "Retrieving paginated users",
		slog.Int64("page", page), slog.Int64("pageSize", pageSize),
		slog.String("sortField", sortField), slog.String("sortOrder", sortOrder))

	result, err := h.userService.GetPaginatedUsers(ctx, page, pageSize, sortField, sortOrder)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	h.responder.WriteJSON(w, r, http.StatusOK, listResponse{
		Success:    true,
		Users:      result.Users,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalUsers: result.TotalUsers,
		TotalPages: result.TotalPages,
	})
}

// GetCityAgeStats handles GET /users/stats/city-age.
func (h *HandlerImpl) GetCityAgeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "Retrieving city age statistics")

	stats, err := h.userService.GetUserAgeStatsByCity(ctx)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	h.responder.WriteJSON(w, r, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

// CreateUser handles POST /users. The payload is validated before the
// service is invoked; all violations are reported in one response.
func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateUser"))

	var params CreateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		h.responder.Error(w, r, api.BadRequest(err.Error(), nil))
		return
	}

	if err := api.ValidateStruct(params); err != nil {
		l.WarnContext(ctx, "Validation error", slog.Any("error", err))
		h.responder.Error(w, r, err)
		return
	}

	l.InfoContext(ctx, "Creating new user",
		slog.String("username", params.Username), slog.String("email", params.Email))

	created, err := h.userService.CreateUser(ctx, params)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	h.responder.WriteJSON(w, r, http.StatusCreated, userResponse{Success: true, User: created})
}

// UpdateUser handles PUT /users/{id}. The not-found case is answered here
// with a plain message body instead of going through the shared error
// writer; see DESIGN.md for why this asymmetry is kept.
func (h *HandlerImpl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	l := h.logger.With(slog.String("handler", "UpdateUser"), slog.String("userID", id))

	// An absent body is an empty partial update, same as an empty object.
	var params UpdateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil && !errors.Is(err, api.ErrEmptyBody) {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		h.responder.Error(w, r, api.BadRequest(err.Error(), nil))
		return
	}

	l.InfoContext(ctx, "Updating user")

	updated, err := h.userService.UpdateUser(ctx, id, params)
	if err != nil {
		var appErr *api.AppError
		if errors.As(err, &appErr) && appErr.Code == api.CodeNotFound {
			h.responder.WriteJSON(w, r, http.StatusNotFound, messageResponse{
				Success: false,
				Message: "User not found",
			})
			return
		}
		h.responder.Error(w, r, err)
		return
	}

	h.responder.WriteJSON(w, r, http.StatusOK, userResponse{Success: true, User: updated})
}

// DeleteUser handles DELETE /users/{id}, with the same direct not-found
// body as UpdateUser.
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	l := h.logger.With(slog.String("handler", "DeleteUser"), slog.String("userID", id))

	l.InfoContext(ctx, "Deleting user")

	_, err := h.userService.DeleteUser(ctx, id)
	if err != nil {
		var appErr *api.AppError
		if errors.As(err, &appErr) && appErr.Code == api.CodeNotFound {
			h.responder.WriteJSON(w, r, http.StatusNotFound, messageResponse{
				Success: false,
				Message: "User not found",
			})
			return
		}
		h.responder.Error(w, r, err)
		return
	}

	h.responder.WriteJSON(w, r, http.StatusOK, messageResponse{
		Success: true,
		Message: "User deleted successfully",
	})
}

// queryInt parses a numeric query parameter, falling back to the default on
// anything non-numeric or below 1.
func queryInt(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// UsersHandler handles patron endpoints.
type UsersHandler struct {
	Store store.Store
}

type createUserRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
}

type penaltyRequest struct {
	Penalty *struct {
		Reason string   `json:"reason" validate:"required"`
		Fine   *float64 `json:"fine" validate:"required,gte=0"`
	} `json:"penalty" validate:"required"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to fetch users.")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	existing, err := h.Store.FindUserByUsernameOrEmail(r.Context(), req.Username, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to add user.")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "Username or email already exist.")
		return
	}

	user, err := h.Store.CreateUser(r.Context(), model.NewUser(req.Username, req.Email, req.Name))
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, store.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "Username or email already exist.")
			return
		}
		slog.Error("failed to create user", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to add user.")
		return
	}

	slog.Info("user added", "user", user.ID, "username", user.Username)
	jsonResponse(w, http.StatusCreated, map[string]string{
		"message": "New user added successfully.",
		"userId":  user.ID,
	})
}

// Login handles POST /api/users/login. It only checks that a user with both
// the username and the email exists.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, "Missing username or email.")
		return
	}

	user, err := h.Store.FindUserByUsernameAndEmail(r.Context(), req.Username, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "An error occurred.")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "User not found.")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})
}

// MakeAdmin handles PUT /api/users/upgrade?id=.
func (h *UsersHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	if user.IsAdmin() {
		jsonError(w, http.StatusBadRequest, "User is already an ADMIN.")
		return
	}

	res, err := h.Store.UpdateUserRole(r.Context(), user.ID, model.RoleAdmin)
	if err != nil {
		slog.Error("failed to update role", "user", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to update role.")
		return
	}
	if res.Matched == 0 {
		jsonError(w, http.StatusNotFound, "User not found.")
		return
	}

	slog.Info("user promoted", "user", user.ID)
	jsonMessage(w, http.StatusOK, "Role updated successfully.")
}

// UpdatePenalty handles PUT /api/users?id=.
func (h *UsersHandler) UpdatePenalty(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, "Missing or invalid penalty data.")
		return
	}

	user, ok := h.user(w, r)
	if !ok {
		return
	}

	penalty := model.Penalty{Reason: req.Penalty.Reason, Fine: *req.Penalty.Fine}
	res, err := h.Store.UpdateUserPenalty(r.Context(), user.ID, penalty)
	if err != nil {
		slog.Error("failed to update penalty", "user", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to update penalty.")
		return
	}
	if res.Matched == 0 {
		jsonError(w, http.StatusNotFound, "User not found.")
		return
	}

	jsonMessage(w, http.StatusOK, "Penalty updated successfully.")
}

// user resolves the user named by the id query parameter, writing the error
// response itself when it cannot.
func (h *UsersHandler) user(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "User ID is required.")
		return nil, false
	}
	if !h.Store.ValidID(id) {
		jsonError(w, http.StatusBadRequest, "Invalid user ID.")
		return nil, false
	}

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		slog.Error("failed to get user", "user", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "An error occurred.")
		return nil, false
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "User not found.")
		return nil, false
	}
	return user, true
}

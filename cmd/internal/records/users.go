package records

import (
	"net/http"

	"collab/cmd/identity"
	"collab/cmd/internal/httpio"
)

type roleResponse struct {
	Role string `json:"role"`
}

type roleUpdateRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	Message string        `json:"message"`
	User    identity.User `json:"user"`
}

func (h *Handler) handleUserRole(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet) {
		return
	}
	role, err := h.roles.GetRole(r.Context(), r.PathValue("username"))
	switch {
	case err == nil:
		httpio.WriteJSON(w, http.StatusOK, roleResponse{Role: role})
	case identity.IsNotFound(err):
		httpio.WriteError(w, http.StatusNotFound, "not_found", "User not found")
	default:
		h.log.Error("records.user_role.fail", "err", err)
		httpio.WriteServerError(w)
	}
}

// handleUsers lists accounts. identity.User has no hash field, so none can leak.
func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet) {
		return
	}
	users, err := h.roles.ListUsers(r.Context())
	if err != nil {
		h.log.Error("records.users.list.fail", "err", err)
		httpio.WriteServerError(w)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, nonNil(users))
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req roleUpdateRequest
	if err := httpio.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	username := r.PathValue("username")
	u, err := h.roles.SetRole(r.Context(), username, req.Role)
	switch {
	case err == nil:
		h.log.Info("records.user.role_updated", "username", username, "role", u.Role)
		httpio.WriteJSON(w, http.StatusOK, userResponse{Message: "User updated", User: u})
	case identity.IsInvalidInput(err):
		httpio.WriteError(w, http.StatusBadRequest, "invalid_role", "Role must be 1-32 lowercase letters, digits, '_' or '-'")
	case identity.IsNotFound(err):
		httpio.WriteError(w, http.StatusNotFound, "not_found", "User not found")
	default:
		h.log.Error("records.user.update.fail", "err", err)
		httpio.WriteServerError(w)
	}
}

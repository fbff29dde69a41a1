package records

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"collab/cmd/identity"
	"collab/cmd/internal/httpio"
)

const maxBodyBytes = 64 << 10

// Handler exposes the record endpoints and the user-role lookup.
type Handler struct {
	log   *slog.Logger
	svc   *Service
	roles identity.RoleDirectory
}

// NewHandler constructs a Handler. roles may be nil, in which case
// /user-role and /users are not registered.
func NewHandler(log *slog.Logger, svc *Service, roles identity.RoleDirectory) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("records: nil service")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, roles: roles}, nil
}

// Register wires record routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/announcements", h.handleAnnouncements)
	mux.HandleFunc("/announcements/{$}", h.handleAnnouncements)
	mux.HandleFunc("/logs", h.handleLogs)
	mux.HandleFunc("/logs/{$}", h.handleLogs)
	mux.HandleFunc("/meetings", h.handleMeetings)
	mux.HandleFunc("/messages", h.handleMessages)
	if h.roles != nil {
		mux.HandleFunc("/user-role/{username}", h.handleUserRole)
		mux.HandleFunc("/users", h.handleUsers)
		mux.HandleFunc("/users/{username}", h.handleUser)
	}
}

type announcementRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedBy string `json:"created_by"`
}

type announcementResponse struct {
	Message      string       `json:"message"`
	Announcement Announcement `json:"announcement"`
}

func (h *Handler) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		list, err := h.svc.Announcements(r.Context())
		if err != nil {
			h.fail(w, "records.announcements.list.fail", err)
			return
		}
		httpio.WriteJSON(w, http.StatusOK, nonNil(list))
		return
	}

	var req announcementRequest
	if err := httpio.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}
	a, err := h.svc.PostAnnouncement(r.Context(), req.Title, req.Content, req.CreatedBy)
	if err != nil {
		h.fail(w, "records.announcements.create.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, announcementResponse{Message: "Announcement posted", Announcement: a})
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet) {
		return
	}
	list, err := h.svc.Activity(r.Context())
	if err != nil {
		h.fail(w, "records.logs.list.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, nonNil(list))
}

type meetingRequest struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
}

func (h *Handler) handleMeetings(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		list, err := h.svc.Meetings(r.Context())
		if err != nil {
			h.fail(w, "records.meetings.list.fail", err)
			return
		}
		httpio.WriteJSON(w, http.StatusOK, nonNil(list))
		return
	}

	var req meetingRequest
	if err := httpio.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}
	if _, err := h.svc.ScheduleMeeting(r.Context(), req.Title, req.StartTime); err != nil {
		h.fail(w, "records.meetings.create.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, httpio.MessageBody{Message: "Meeting created"})
}

type messageRequest struct {
	ChatroomID int64  `json:"chatroom_id"`
	Content    string `json:"content"`
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		room, err := strconv.ParseInt(r.URL.Query().Get("chatroom_id"), 10, 64)
		if err != nil {
			httpio.WriteError(w, http.StatusBadRequest, "invalid_chatroom", "chatroom_id must be a positive integer")
			return
		}
		list, err := h.svc.Messages(r.Context(), room)
		if err != nil {
			h.fail(w, "records.messages.list.fail", err)
			return
		}
		httpio.WriteJSON(w, http.StatusOK, nonNil(list))
		return
	}

	var req messageRequest
	if err := httpio.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}
	if _, err := h.svc.SendMessage(r.Context(), req.ChatroomID, req.Content); err != nil {
		h.fail(w, "records.messages.create.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, httpio.MessageBody{Message: "Message sent"})
}

// fail maps validation errors to 400 and everything else to 500.
func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	var ve ValidationError
	if errors.As(err, &ve) {
		httpio.WriteError(w, http.StatusBadRequest, ve.Code, ve.Message)
		return
	}
	h.log.Error(event, "err", err)
	httpio.WriteServerError(w)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

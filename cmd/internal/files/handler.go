package files

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"collab/cmd/internal/httpio"
)

// DefaultMaxUploadBytes caps a single upload.
const DefaultMaxUploadBytes int64 = 10 << 20

const multipartMemory = 1 << 20

// Handler serves POST /upload.
type Handler struct {
	log      *slog.Logger
	blob     Blob
	maxBytes int64
	now      func() time.Time
}

// NewHandler constructs a Handler. maxBytes <= 0 selects DefaultMaxUploadBytes.
func NewHandler(log *slog.Logger, blob Blob, maxBytes int64) (*Handler, error) {
	if blob == nil {
		return nil, errors.New("files: nil blob store")
	}
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{log: log, blob: blob, maxBytes: maxBytes, now: time.Now}, nil
}

// Register wires the upload route onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/upload", h.handleUpload)
}

type uploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Key      string `json:"key"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodPost) {
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httpio.WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
			return
		}
		httpio.WriteError(w, http.StatusBadRequest, "invalid_form", "Expected a multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "missing_file", "Form field \"file\" is required")
		return
	}
	defer func() { _ = f.Close() }()

	if hdr.Size > h.maxBytes {
		httpio.WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
		return
	}

	name := SanitizeName(hdr.Filename)
	if name == "" {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_filename", "File name is invalid")
		return
	}

	key := StorageKey(h.now(), name)
	if err := h.blob.Put(r.Context(), key, f, hdr.Size, hdr.Header.Get("Content-Type")); err != nil {
		h.log.Error("files.upload.fail", "key", key, "err", err)
		httpio.WriteServerError(w)
		return
	}

	h.log.Info("files.upload.ok", "key", key, "bytes", hdr.Size)
	httpio.WriteJSON(w, http.StatusCreated, uploadResponse{Message: "File uploaded", Filename: name, Key: key})
}

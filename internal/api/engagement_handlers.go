package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// maxUploadSize bounds a single document upload
const maxUploadSize = 25 << 20

// Engagement handlers (access code auth). Every handler runs behind
// Authenticate, so the client is always present in the context.

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	view, err := s.manager.Open(r.Context(), client)
	if err != nil {
		respondCommandError(w, r, err, "open engagement")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	if err := s.manager.Close(r.Context(), client.ID()); err != nil {
		respondCommandError(w, r, err, "close engagement")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session closed",
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	progress, err := s.manager.Progress(r.Context(), client)
	if err != nil {
		respondCommandError(w, r, err, "get progress")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleSetDocument(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	name := pathParam(r, "name")

	var req models.SetDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Received == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "received is required")
		return
	}

	progress, err := s.manager.ReceiveDocument(r.Context(), client, name, *req.Received)
	if err != nil {
		respondCommandError(w, r, err, "update document")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	name := pathParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "validation_error", "upload exceeds size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	// Content is not retained, only its arrival is recorded
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read upload")
		return
	}
	if size == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "uploaded file is empty")
		return
	}

	progress, err := s.manager.ReceiveDocument(r.Context(), client, name, true)
	if err != nil {
		respondCommandError(w, r, err, "record upload")
		return
	}

	slog.Info("document uploaded",
		"client", client.MaskedCode(),
		"document", name,
		"filename", header.Filename,
		"bytes", size,
	)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"document": name,
		"filename": header.Filename,
		"bytes":    size,
		"progress": progress,
	})
}

func (s *Server) handleSetInstallment(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	ordinal, err := strconv.Atoi(pathParam(r, "ordinal"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "installment ordinal must be a number")
		return
	}

	var req models.SetInstallmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Paid == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "paid is required")
		return
	}

	progress, err := s.manager.PayInstallment(r.Context(), client, ordinal, *req.Paid)
	if err != nil {
		respondCommandError(w, r, err, "update installment")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleSetStage(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	name := pathParam(r, "name")

	var req models.SetStageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "completed is required")
		return
	}

	progress, err := s.manager.SetStage(r.Context(), client, name, *req.Completed)
	if err != nil {
		respondCommandError(w, r, err, "update stage")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	meetings, err := s.manager.Meetings(r.Context(), client)
	if err != nil {
		respondCommandError(w, r, err, "list meetings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"meetings": meetings,
		"total":    len(meetings),
	})
}

func (s *Server) handleRecordMeeting(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	var req models.RecordMeetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.manager.RecordMeeting(r.Context(), client, req.Date, req.Summary)
	if err != nil {
		respondCommandError(w, r, err, "record meeting")
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

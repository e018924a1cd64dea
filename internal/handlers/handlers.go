package handlers

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pagesmith-deployment/internal/database"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"
	"pagesmith-deployment/internal/orchestrator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	db       *sql.DB
	pipeline *orchestrator.Orchestrator
	logger   *logrus.Entry
}

func NewHandler(db *sql.DB, pipeline *orchestrator.Orchestrator) *Handler {
	return &Handler{
		db:       db,
		pipeline: pipeline,
		logger:   logger.WithModule("handlers"),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// deployPayload is the wire shape of an intake request. Attachments arrive
// as data URIs and are decoded here, before the pipeline sees them.
type deployPayload struct {
	Task          string             `json:"task"`
	Round         int                `json:"round"`
	Nonce         string             `json:"nonce"`
	Brief         string             `json:"brief"`
	Checks        []string           `json:"checks"`
	EvaluationURL string             `json:"evaluation_url"`
	Attachments   []intakeAttachment `json:"attachments"`
}

type intakeAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Deploy accepts a build/revise request, records it in the round ledger and
// runs the pipeline in the background. The terminal result is delivered to
// the request's evaluation URL and visible on the status endpoint.
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	var payload deployPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(payload.Task) == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}
	if payload.Round < 1 {
		http.Error(w, "round must be a positive integer", http.StatusBadRequest)
		return
	}

	req := &models.DeploymentRequest{
		Task:          payload.Task,
		Round:         payload.Round,
		Nonce:         payload.Nonce,
		Brief:         payload.Brief,
		Checks:        payload.Checks,
		EvaluationURL: payload.EvaluationURL,
		Attachments:   decodeAttachments(payload.Attachments),
	}

	runID := uuid.NewString()
	if err := database.InsertRound(h.db, runID, req.Task, req.Round, req.Nonce, "running"); err != nil {
		h.logger.WithError(err).Error("Failed to record round")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// One goroutine per request: the pipeline runs to a terminal state and
	// cannot be cancelled by the caller once started.
	go h.runPipeline(req, runID)

	response := models.DeployResponse{
		Status:  "accepted",
		Task:    req.Task,
		Round:   req.Round,
		Message: "deployment started",
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) runPipeline(req *models.DeploymentRequest, runID string) {
	result, notifResult := h.pipeline.Run(context.Background(), req)

	status := result.Status
	if result.Status == "success" && !result.HostingConfirmed {
		status = "success_hosting_unconfirmed"
	}
	message := result.Message
	if notifResult != nil && !notifResult.Delivered {
		message += fmt.Sprintf("; %s: %s", models.StepNotification, models.ErrNotificationExhausted.Error())
	}
	if err := database.UpdateRoundResult(h.db, runID, status, result.RepoURL, result.PagesURL,
		result.CommitSHA, message); err != nil {
		h.logger.WithField("run_id", runID).WithError(err).Error("Failed to record round result")
	}
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task := vars["task"]

	rounds, err := database.GetRounds(h.db, task)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if len(rounds) == 0 {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}

	response := models.StatusResponse{Task: task, Rounds: rounds}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// decodeAttachments turns data-URI references into raw payloads. Anything
// that fails to decode is kept with an empty payload and flagged by the
// resolver later; a bad attachment never rejects the request.
func decodeAttachments(refs []intakeAttachment) []models.AttachmentRef {
	out := make([]models.AttachmentRef, 0, len(refs))
	for _, ref := range refs {
		payload, kind := decodeDataURI(ref.URL)
		out = append(out, models.AttachmentRef{
			Name:      ref.Name,
			Payload:   payload,
			MediaKind: kind,
		})
	}
	return out
}

func decodeDataURI(uri string) ([]byte, models.MediaKind) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, models.MediaUnknown
	}
	comma := strings.Index(uri, ",")
	if comma < 0 {
		return nil, models.MediaUnknown
	}

	meta := uri[len("data:"):comma]
	data := uri[comma+1:]

	var payload []byte
	if strings.HasSuffix(meta, ";base64") {
		meta = strings.TrimSuffix(meta, ";base64")
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, models.MediaUnknown
		}
		payload = decoded
	} else {
		payload = []byte(data)
	}

	return payload, kindFromMediaType(meta)
}

func kindFromMediaType(mediaType string) models.MediaKind {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mediaType == "text/csv":
		return models.MediaCSV
	case mediaType == "application/json":
		return models.MediaJSON
	case strings.HasPrefix(mediaType, "text/"):
		return models.MediaText
	case strings.HasPrefix(mediaType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(mediaType, "audio/"):
		return models.MediaAudio
	case strings.HasPrefix(mediaType, "video/"):
		return models.MediaVideo
	case mediaType == "application/pdf":
		return models.MediaDocument
	}
	return models.MediaUnknown
}

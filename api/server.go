// Package api exposes the annotation review workflow over HTTP for the
// headless server build.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"thermal-tracer/internal/annotation"
	"thermal-tracer/internal/detect"
	"thermal-tracer/internal/inspection"
	"thermal-tracer/internal/store"
)

type Server struct {
	db     *store.DB
	oracle detect.Oracle
}

func NewServer(db *store.DB, oracle detect.Oracle) *Server {
	return &Server{
		db:     db,
		oracle: oracle,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/annotations", s.annotationsHandler)
	mux.HandleFunc("/api/annotations/approve", s.approveHandler)
	mux.HandleFunc("/api/annotations/reject", s.rejectHandler)
	mux.HandleFunc("/api/annotations/delete", s.deleteHandler)
	mux.HandleFunc("/api/annotations/history", s.historyHandler)
	mux.HandleFunc("/api/detect", s.detectHandler)
	mux.HandleFunc("/api/feedback", s.feedbackHandler)
	mux.HandleFunc("/api/captures", s.capturesHandler)
	mux.HandleFunc("/api/health", s.healthHandler)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, annotation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, annotation.ErrInvalidGeometry):
		status = http.StatusBadRequest
	case errors.Is(err, annotation.ErrInvalidTransition),
		errors.Is(err, annotation.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, annotation.ErrRemoteFailure):
		status = http.StatusBadGateway
	case errors.Is(err, annotation.ErrCaptureFailure):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// annotationsHandler lists the visible set (GET) or saves a record (POST).
// A POST carrying a predecessorId creates the next version of that box; one
// without it creates a new logical box and the server assigns id, version,
// and boxNumber.
func (s *Server) annotationsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		inspectionID := r.URL.Query().Get("inspection_id")
		if inspectionID == "" {
			http.Error(w, "inspection_id is required", http.StatusBadRequest)
			return
		}
		visible, err := s.db.Visible(inspectionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visible)

	case http.MethodPost:
		var a annotation.Annotation
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if a.InspectionID == "" && a.PredecessorID == "" {
			http.Error(w, "inspectionId is required", http.StatusBadRequest)
			return
		}
		confirmed, err := s.db.Save(&a, a.PredecessorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, confirmed)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type transitionRequest struct {
	ID     string `json:"id"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

func decodeTransition(w http.ResponseWriter, r *http.Request) (transitionRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return transitionRequest{}, false
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return transitionRequest{}, false
	}
	return req, true
}

func (s *Server) approveHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTransition(w, r)
	if !ok {
		return
	}
	confirmed, err := s.db.Approve(req.ID, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmed)
}

func (s *Server) rejectHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTransition(w, r)
	if !ok {
		return
	}
	confirmed, err := s.db.Reject(req.ID, req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmed)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTransition(w, r)
	if !ok {
		return
	}
	if err := s.db.Delete(req.ID, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inspectionID := r.URL.Query().Get("inspection_id")
	boxNumber, err := strconv.Atoi(r.URL.Query().Get("box_number"))
	if inspectionID == "" || err != nil {
		http.Error(w, "inspection_id and box_number are required", http.StatusBadRequest)
		return
	}

	history, err := s.db.History(inspectionID, boxNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type detectRequest struct {
	InspectionID        string  `json:"inspectionId"`
	ImagePath           string  `json:"image_path"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Actor               string  `json:"actor"`
}

// detectHandler runs the oracle and persists each detection as a new
// pending box. A failed oracle call stores nothing.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InspectionID == "" || req.ImagePath == "" {
		http.Error(w, "inspectionId and image_path are required", http.StatusBadRequest)
		return
	}

	result, err := s.oracle.Detect(r.Context(), req.ImagePath, req.ConfidenceThreshold)
	if err != nil {
		writeError(w, err)
		return
	}

	drafts := make([]*annotation.Annotation, 0, len(result.Detections))
	for _, c := range result.Candidates() {
		drafts = append(drafts, &annotation.Annotation{
			InspectionID: req.InspectionID,
			BBox:         c.BBox,
			ClassID:      c.Class.ID,
			ClassName:    c.Class.Name,
			Confidence:   c.Confidence,
			Source:       c.Source,
			CreatedBy:    req.Actor,
		})
	}

	// All or nothing: a run with one bad box must not persist the others.
	confirmed, err := s.db.SaveBatch(drafts)
	if err != nil {
		writeError(w, err)
		return
	}
	if confirmed == nil {
		confirmed = []*annotation.Annotation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"annotations":       confirmed,
		"inference_time_ms": result.InferenceTimeMS,
	})
}

// feedbackHandler exports the reviewed annotation set, as JSON or CSV.
func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inspectionID := r.URL.Query().Get("inspection_id")
	if inspectionID == "" {
		http.Error(w, "inspection_id is required", http.StatusBadRequest)
		return
	}

	working, err := s.workingSet(inspectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	export := inspection.BuildFeedbackExport(inspectionID, working)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "feedback_"+inspectionID+".csv"))
		if err := export.WriteCSV(w); err != nil {
			log.Printf("failed to write feedback csv: %v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// workingSet rebuilds an in-memory store from the persisted chains so the
// feedback builder can walk origin and final versions.
func (s *Server) workingSet(inspectionID string) (*annotation.Store, error) {
	visible, err := s.db.Visible(inspectionID)
	if err != nil {
		return nil, err
	}

	working := annotation.NewStore()
	for _, box := range visible {
		chain, err := s.db.History(inspectionID, box.BoxNumber)
		if err != nil {
			return nil, err
		}
		for _, a := range chain {
			working.Upsert(a)
		}
	}
	return working, nil
}

// capturesHandler stores a flattened snapshot (POST, raw PNG body) or
// returns one (GET ?id=).
func (s *Server) capturesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		inspectionID := r.URL.Query().Get("inspection_id")
		if inspectionID == "" {
			http.Error(w, "inspection_id is required", http.StatusBadRequest)
			return
		}
		png, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read capture body", http.StatusBadRequest)
			return
		}
		id, err := s.db.SaveCapture(inspectionID, png)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})

	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		png, err := s.db.Capture(id)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	oracleUp := true
	if err := s.oracle.Health(r.Context()); err != nil {
		oracleUp = false
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"detector_online": oracleUp,
	})
}

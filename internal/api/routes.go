// Package api provides HTTP handlers for the mask backend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/slicepaint/slicepaint/internal/maskstore"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Service     *service.MaskService
	CORSOrigins []string
	Hub         *Hub
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Segmentation CRUD
	r.Route("/api/segmentations", func(r chi.Router) {
		r.Post("/", createSegmentationHandler(cfg.Service))
		r.Get("/", listSegmentationsHandler(cfg.Service))
		r.Get("/{id}", getSegmentationHandler(cfg.Service))
		r.Put("/{id}/status", updateStatusHandler(cfg.Service))
		r.Post("/{id}/labels", addLabelHandler(cfg.Service))
		r.Delete("/{id}", deleteSegmentationHandler(cfg.Service))
	})

	// Painting endpoints, scoped per segmentation
	r.Route("/s/{segmentation}", func(r chi.Router) {
		r.Get("/slices/{index}/mask.png", maskSnapshotHandler(cfg.Service))
		r.Post("/strokes", strokeHandler(cfg.Service, cfg.Hub))
		if cfg.Hub != nil {
			r.Get("/live", cfg.Hub.ServeWS)
		}
	})

	return r
}

// strokeRequest is the flat wire form of one persisted brush application.
type strokeRequest struct {
	SliceIndex int  `json:"slice_index"`
	LabelID    int  `json:"label_id"`
	X          int  `json:"x"`
	Y          int  `json:"y"`
	BrushSize  int  `json:"brush_size"`
	Erase      bool `json:"erase"`
}

func (sr strokeRequest) placed() paint.Placed {
	return paint.Placed{
		Slice: sr.SliceIndex,
		Stroke: paint.Stroke{
			X:     sr.X,
			Y:     sr.Y,
			Label: sr.LabelID,
			Size:  sr.BrushSize,
			Erase: sr.Erase,
		},
	}
}

func maskSnapshotHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segID := chi.URLParam(r, "segmentation")
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "invalid slice index", http.StatusBadRequest)
			return
		}

		var data []byte
		if r.URL.Query().Get("forget") == "1" {
			// Test hook: act like an instance with no record of the paint.
			data, err = svc.EmptySnapshot(segID)
		} else {
			data, err = svc.Snapshot(segID, index)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		// The cb query param is a cache-bust token; snapshots must not be
		// reused by intermediaries across reconciliations.
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	}
}

func strokeHandler(svc *service.MaskService, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segID := chi.URLParam(r, "segmentation")

		var req strokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid stroke payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		placed := req.placed()
		if err := svc.RecordStroke(segID, placed); err != nil {
			writeServiceError(w, err)
			return
		}

		if hub != nil {
			hub.Broadcast(segID, req)
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type createSegmentationRequest struct {
	Name   string   `json:"name"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Slices int      `json:"total_slices"`
	Labels []string `json:"labels"`
}

func createSegmentationHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSegmentationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		seg, err := svc.CreateSegmentation(req.Name, req.Width, req.Height, req.Slices, req.Labels)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, seg)
	}
}

func listSegmentationsHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListSegmentations()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"segmentations": list})
	}
}

func getSegmentationHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seg, err := svc.GetSegmentation(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, seg)
	}
}

func updateStatusHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		switch maskstore.Status(req.Status) {
		case maskstore.StatusDraft, maskstore.StatusInProgress, maskstore.StatusCompleted:
		default:
			http.Error(w, "unknown status: "+req.Status, http.StatusBadRequest)
			return
		}

		if err := svc.UpdateStatus(chi.URLParam(r, "id"), maskstore.Status(req.Status)); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addLabelHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "label name required", http.StatusBadRequest)
			return
		}

		l, err := svc.AddLabel(chi.URLParam(r, "id"), req.Name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func deleteSegmentationHandler(svc *service.MaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteSegmentation(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidSlice):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

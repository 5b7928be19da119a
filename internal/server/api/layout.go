// Package api provides HTTP API handlers for editing the stored layout.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/store"
)

// LayoutHandler handles HTTP requests for stored layout objects. Changes
// apply to the scene at the next start; live positions are never written.
type LayoutHandler struct {
	store *store.Store
}

// NewLayoutHandler creates a new LayoutHandler with the given store.
func NewLayoutHandler(s *store.Store) *LayoutHandler {
	return &LayoutHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *LayoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/layout or /api/layout/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/layout")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createObjectRequest struct {
	ID       string     `json:"id"`
	Asset    string     `json:"asset"`
	Position geom.Point `json:"position"`
}

type updateObjectRequest struct {
	Asset    string      `json:"asset"`
	Position *geom.Point `json:"position"`
}

type objectResponse struct {
	ID        string     `json:"id"`
	Asset     string     `json:"asset"`
	Position  geom.Point `json:"position"`
	Order     int        `json:"order"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

type listObjectsResponse struct {
	Objects []objectResponse `json:"objects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(o *store.LayoutObject) objectResponse {
	return objectResponse{
		ID:        o.ID,
		Asset:     o.Asset,
		Position:  geom.Point{X: o.X, Y: o.Y},
		Order:     o.Order,
		CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: o.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/layout and returns objects in hit-test order.
func (h *LayoutHandler) list(w http.ResponseWriter, r *http.Request) {
	objects, err := h.store.Layout().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list layout")
		return
	}

	response := listObjectsResponse{
		Objects: make([]objectResponse, 0, len(objects)),
	}
	for _, o := range objects {
		response.Objects = append(response.Objects, toResponse(o))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/layout/{id}.
func (h *LayoutHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	obj, err := h.store.Layout().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Object not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get object")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(obj))
}

// create handles POST /api/layout and appends an object. An id is generated
// when none is given.
func (h *LayoutHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}
	if strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Invalid object id")
		return
	}

	if _, err := h.store.Layout().GetByID(id); err == nil {
		writeError(w, http.StatusConflict, "Object already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to create object")
		return
	}

	obj := &store.LayoutObject{
		ID:    id,
		Asset: req.Asset,
		X:     req.Position.X,
		Y:     req.Position.Y,
	}
	if err := h.store.Layout().Create(obj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create object")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(obj))
}

// update handles PUT /api/layout/{id}.
func (h *LayoutHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	obj, err := h.store.Layout().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Object not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get object")
		return
	}

	var req updateObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Asset != "" {
		obj.Asset = req.Asset
	}
	if req.Position != nil {
		obj.X, obj.Y = req.Position.X, req.Position.Y
	}

	if err := h.store.Layout().Update(obj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update object")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(obj))
}

// delete handles DELETE /api/layout/{id}.
func (h *LayoutHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Layout().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Object not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete object")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

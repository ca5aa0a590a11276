package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// VFSHandler handles HTTP requests for the virtual filesystem
type VFSHandler struct {
	factory simplevfs.Factory
}

// NewVFSHandler creates a new VFS handler
func NewVFSHandler(factory simplevfs.Factory) *VFSHandler {
	return &VFSHandler{factory: factory}
}

// Routes returns the routes for the virtual filesystem
func (h *VFSHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/objects", h.GetObject)
	r.Get("/objects/history", h.GetHistory)
	r.Post("/objects/update", h.UpdateObject)
	r.Get("/clients/{clientID}/summary", h.GetClientSummary)
	r.Post("/clients/{clientID}/vfs-path", h.ResolvePath)

	return r
}

// AttributeResponse is one attribute version in a response body
type AttributeResponse struct {
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
}

// ObjectResponse is the response body for an object snapshot
type ObjectResponse struct {
	URN        string              `json:"urn"`
	Attributes []AttributeResponse `json:"attributes"`
}

// GetObject returns the attribute snapshot of an object, optionally at a
// point in time given by the as_of query parameter (RFC 3339).
func (h *VFSHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	urn, err := simplevfs.ParseURN(r.URL.Query().Get("urn"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var opts []simplevfs.OpenOption
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid as_of timestamp", http.StatusBadRequest)
			return
		}
		opts = append(opts, simplevfs.AsOf(asOf))
	}

	obj, err := h.factory.Open(r.Context(), urn, objectKind(r), simplevfs.ModeRead, opts...)
	if err != nil {
		slog.Error("Failed to open object", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	snapshot := obj.GetAll()
	resp := ObjectResponse{URN: string(urn), Attributes: make([]AttributeResponse, 0, len(snapshot))}
	for name, rec := range snapshot {
		resp.Attributes = append(resp.Attributes, AttributeResponse{
			Name:      name,
			Timestamp: rec.Timestamp,
			Value:     json.RawMessage(rec.Value),
		})
	}

	render.JSON(w, r, resp)
}

// HistoryResponse is the response body for an attribute history
type HistoryResponse struct {
	URN       string              `json:"urn"`
	Attribute string              `json:"attribute"`
	Versions  []AttributeResponse `json:"versions"`
}

// GetHistory returns every stored version of one attribute, oldest first.
func (h *VFSHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	urn, err := simplevfs.ParseURN(r.URL.Query().Get("urn"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attr := r.URL.Query().Get("attr")
	if attr == "" {
		http.Error(w, "attr query parameter is required", http.StatusBadRequest)
		return
	}

	obj, err := h.factory.Open(r.Context(), urn, objectKind(r), simplevfs.ModeRead)
	if err != nil {
		slog.Error("Failed to open object", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	records, err := obj.History(r.Context(), attr)
	if err != nil {
		slog.Error("Failed to read history", "urn", urn, "attr", attr, "error", err)
		writeError(w, err)
		return
	}

	resp := HistoryResponse{URN: string(urn), Attribute: attr, Versions: make([]AttributeResponse, 0, len(records))}
	for _, rec := range records {
		resp.Versions = append(resp.Versions, AttributeResponse{
			Name:      rec.Name,
			Timestamp: rec.Timestamp,
			Value:     json.RawMessage(rec.Value),
		})
	}

	render.JSON(w, r, resp)
}

// UpdateResponse is the response body for a content refresh request
type UpdateResponse struct {
	URN     string `json:"urn"`
	FlowRef string `json:"flow_ref"`
}

// UpdateObject asks for a content refresh of a file object. If a refresh is
// already running its flow reference is returned instead of starting another.
func (h *VFSHandler) UpdateObject(w http.ResponseWriter, r *http.Request) {
	urn, err := simplevfs.ParseURN(r.URL.Query().Get("urn"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	obj, err := h.factory.Open(r.Context(), urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	if err != nil {
		slog.Error("Failed to open object", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	ref, err := obj.Update(r.Context())
	if err != nil {
		slog.Error("Failed to request update", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Update requested", "urn", urn, "flow_ref", ref)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, UpdateResponse{URN: string(urn), FlowRef: string(ref)})
}

// GetClientSummary returns the aggregated summary of a client object.
func (h *VFSHandler) GetClientSummary(w http.ResponseWriter, r *http.Request) {
	urn, err := simplevfs.ClientURN(chi.URLParam(r, "clientID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	obj, err := h.factory.Open(r.Context(), urn, simplevfs.KindClient, simplevfs.ModeRead)
	if err != nil {
		slog.Error("Failed to open client", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	summary, err := obj.GetSummary()
	if err != nil {
		slog.Error("Failed to build summary", "urn", urn, "error", err)
		writeError(w, err)
		return
	}

	render.JSON(w, r, summary)
}

// ResolvePathResponse is the response body for a pathspec resolution
type ResolvePathResponse struct {
	URN string `json:"urn"`
}

// ResolvePath translates a pathspec into the client's VFS location.
func (h *VFSHandler) ResolvePath(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var spec simplevfs.PathSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	urn, err := spec.ToURN(clientID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	render.JSON(w, r, ResolvePathResponse{URN: string(urn)})
}

// objectKind reads the kind query parameter, defaulting to file.
func objectKind(r *http.Request) simplevfs.ObjectKind {
	if kind := r.URL.Query().Get("kind"); kind != "" {
		return simplevfs.ObjectKind(kind)
	}
	return simplevfs.KindFile
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simplevfs.ErrObjectNotFound) || errors.Is(err, simplevfs.ErrAttributeNotSet):
		status = http.StatusNotFound
	case errors.Is(err, simplevfs.ErrInvalidURN) || errors.Is(err, simplevfs.ErrUnknownKind) ||
		errors.Is(err, simplevfs.ErrUnknownAttribute) || errors.Is(err, simplevfs.ErrTypeMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, simplevfs.ErrStoreUnavailable) || errors.Is(err, simplevfs.ErrLockStatusUnavailable):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

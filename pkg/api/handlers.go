package api

import (
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gameshelf/gameshelf/internal/logger"
	"github.com/gameshelf/gameshelf/pkg/gameinfo"
	"github.com/gameshelf/gameshelf/pkg/library"
)

// gameView is the JSON shape of one library entry.
type gameView struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
}

// recordView is the JSON shape of one cache record.
type recordView struct {
	Path           string            `json:"path"`
	Kind           string            `json:"kind"`
	Title          string            `json:"title,omitempty"`
	WantBackground bool              `json:"want_background"`
	Attrs          map[string]string `json:"attrs,omitempty"`
	Slots          map[string]string `json:"slots"`
	LastAccess     time.Time         `json:"last_access"`
}

func newRecordView(rec *gameinfo.Record) recordView {
	return recordView{
		Path:           rec.Path(),
		Kind:           rec.Kind().String(),
		Title:          rec.Title(),
		WantBackground: rec.WantBackground(),
		Attrs:          rec.Attrs(),
		Slots: map[string]string{
			gameinfo.SlotIcon.String():                rec.SlotState(gameinfo.SlotIcon).String(),
			gameinfo.SlotBackground.String():          rec.SlotState(gameinfo.SlotBackground).String(),
			gameinfo.SlotBackgroundSecondary.String(): rec.SlotState(gameinfo.SlotBackgroundSecondary).String(),
		},
		LastAccess: rec.LastAccess(),
	}
}

// GameHandler serves the library listing and per-game cache records.
type GameHandler struct {
	cache *gameinfo.Cache
	lib   *library.Library
}

// NewGameHandler creates a handler over the cache and library.
func NewGameHandler(cache *gameinfo.Cache, lib *library.Library) *GameHandler {
	return &GameHandler{cache: cache, lib: lib}
}

// List handles GET /api/v1/games.
//
// Listing a game consults its cache record, which keeps titles warm and
// bumps the load priority of everything on screen.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games := h.lib.Games()

	views := make([]gameView, 0, len(games))
	for _, g := range games {
		rec := h.cache.GetInfo(g.Path, false)
		views = append(views, gameView{
			Path:  g.Path,
			Kind:  g.Kind.String(),
			Title: rec.Title(),
		})
	}

	writeJSON(w, http.StatusOK, okResponse(views))
}

// Info handles GET /api/v1/games/info?path=<path>&bg=<bool>.
//
// Responds immediately with whatever the record currently holds; fields
// still being loaded show up as empty or raw slots.
func (h *GameHandler) Info(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing required query parameter: path"))
		return
	}

	wantBackground := false
	if bg := r.URL.Query().Get("bg"); bg != "" {
		parsed, err := strconv.ParseBool(bg)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid bg parameter: must be a boolean"))
			return
		}
		wantBackground = parsed
	}

	rec := h.cache.GetInfo(path, wantBackground)
	writeJSON(w, http.StatusOK, okResponse(newRecordView(rec)))
}

// Artwork handles GET /api/v1/games/artwork?path=<path>&slot=<slot>.
//
// Decoded artwork is re-encoded as PNG. While the slot is still empty or
// raw, the handler answers 202 Accepted so clients can poll.
func (h *GameHandler) Artwork(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing required query parameter: path"))
		return
	}

	slot, ok := parseSlot(r.URL.Query().Get("slot"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid slot: must be icon, background, or background_secondary"))
		return
	}

	rec := h.cache.GetInfo(path, slot != gameinfo.SlotIcon)

	art := rec.Artwork(slot)
	if art == nil {
		writeJSON(w, http.StatusAccepted, pendingResponse(newRecordView(rec)))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, art.Image); err != nil {
		// Headers are already sent; all we can do is log.
		logger.Error("Failed to encode artwork response",
			"path", path,
			"slot", slot.String(),
			"error", err,
		)
	}
}

// parseSlot resolves a slot query parameter. An empty value means the icon.
func parseSlot(name string) (gameinfo.SlotID, bool) {
	switch name {
	case "", gameinfo.SlotIcon.String():
		return gameinfo.SlotIcon, true
	case gameinfo.SlotBackground.String():
		return gameinfo.SlotBackground, true
	case gameinfo.SlotBackgroundSecondary.String():
		return gameinfo.SlotBackgroundSecondary, true
	default:
		return 0, false
	}
}

// CacheHandler serves cache maintenance operations.
type CacheHandler struct {
	cache *gameinfo.Cache
	lib   *library.Library
}

// NewCacheHandler creates a handler over the cache.
func NewCacheHandler(cache *gameinfo.Cache, lib *library.Library) *CacheHandler {
	return &CacheHandler{cache: cache, lib: lib}
}

// Stats handles GET /api/v1/cache.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(map[string]int{
		"records": h.cache.Len(),
		"games":   h.lib.Len(),
	}))
}

// Clear handles POST /api/v1/cache/clear.
//
// Blocks until in-flight loads have drained and all records are released.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// FlushBackgrounds handles POST /api/v1/cache/flush-backgrounds.
func (h *CacheHandler) FlushBackgrounds(w http.ResponseWriter, r *http.Request) {
	h.cache.FlushBGs()
	writeJSON(w, http.StatusOK, okResponse(nil))
}

// HealthHandler serves liveness probes.
type HealthHandler struct {
	cache *gameinfo.Cache
	lib   *library.Library
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(cache *gameinfo.Cache, lib *library.Library) *HealthHandler {
	return &HealthHandler{cache: cache, lib: lib}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]int{
			"records": h.cache.Len(),
			"games":   h.lib.Len(),
		},
	})
}

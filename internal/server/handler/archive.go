package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// ArchiveHandler serves the cold-storage archive inventory.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler reading under the given key
// prefix.
func NewArchiveHandler(blobs domain.BlobReader, prefix string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		prefix: prefix,
		logger: logHandler(logger, "archive"),
	}
}

// ListArchives returns metadata for every archived object.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), h.prefix)
	if err != nil {
		h.logger.Error("archive listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}

	type entry struct {
		Path         string `json:"path"`
		Size         int64  `json:"size"`
		LastModified string `json:"last_modified"`
	}
	out := make([]entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, entry{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

// GetArchive streams one archived object.
// GET /api/archives/{path...}
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r, "path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing archive path")
		return
	}

	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.Error("archive fetch failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

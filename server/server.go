// Package server implements the tile HTTP route: GET
// /{group}/{z}/{x}/{y}.mvt, mapping atlas.Outcome onto the prescribed
// status codes.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/atlas"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

// Fetcher resolves a single tile. atlas.Wyrm.FetchTile satisfies this
// directly; cache.Cache.FetchTile wraps it with a read-through cache,
// so Server never needs to know which one it's holding.
type Fetcher func(ctx context.Context, group string, z, x, y uint32) atlas.Result

// Server serves the tile route in front of a tile Fetcher.
type Server struct {
	fetch Fetcher
	log   logrus.FieldLogger
}

// New builds a Server around any Fetcher.
func New(fetch Fetcher, log logrus.FieldLogger) *Server {
	return &Server{fetch: fetch, log: log}
}

// Handler returns the server's http.Handler, routing GET
// /{group}/{z}/{x}/{y}.mvt to the tile endpoint.
func (s *Server) Handler() http.Handler {
	mux := httptreemux.NewContextMux()
	mux.GET("/:group/:z/:x/:ytail", s.handleTile)
	return mux
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	params := httptreemux.ContextParams(r.Context())
	reqID := uuid.NewString()
	log := s.log.WithField("request_id", reqID).WithField("group", params["group"])

	y, ok := parseTail(params["ytail"])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	z, zerr := strconv.ParseUint(params["z"], 10, 32)
	x, xerr := strconv.ParseUint(params["x"], 10, 32)
	if zerr != nil || xerr != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res := s.fetch(r.Context(), params["group"], uint32(z), uint32(x), y)
	switch res.Outcome {
	case atlas.Ok:
		w.Header().Set("Content-Type", mvtContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Bytes)
	case atlas.Empty:
		w.WriteHeader(http.StatusNoContent)
	case atlas.NotFound:
		w.WriteHeader(http.StatusNotFound)
	default:
		log.Error("server: tile composition failed")
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// parseTail splits "{y}.mvt" into its integer y value. A path segment
// missing the ".mvt" suffix, or whose prefix isn't a valid uint32, is
// malformed (404).
func parseTail(tail string) (uint32, bool) {
	trimmed := strings.TrimSuffix(tail, ".mvt")
	if trimmed == tail {
		return 0, false
	}
	y, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(y), true
}

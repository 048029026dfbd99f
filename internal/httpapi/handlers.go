package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dyluth/datahub/internal/timespec"
	"github.com/dyluth/datahub/pkg/hub"
	"github.com/dyluth/datahub/pkg/wire"
)

// writeHandler handles PUT|POST /v1/vars/{key}.
// A JSON body carries {"value", "encoding"}; any other content type is taken
// as the raw value.
func (s *Server) writeHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	value := body
	if isJSON(r.Header.Get("Content-Type")) {
		var req wire.WriteRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		value, err = wire.DecodeValue(req.Value, req.Encoding)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ack, err := s.hub.Write(key, value)
	if err != nil {
		writeHubError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.WriteResponse{
		Status:   wire.StatusOK,
		Key:      ack.Key,
		Version:  ack.Version,
		Notified: ack.Notified,
	})
}

// readHandler handles GET /v1/vars/{key}?timeout=&after=.
//
// timeout=0 without after is a non-blocking Peek (READY or PENDING).
// Otherwise the request blocks in the hub; TIMEOUT is a 200 response, not an
// HTTP error, so clients can tell it from transport failures.
func (s *Server) readHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	q := r.URL.Query()

	timeout := s.opts.DefaultWait
	if spec := q.Get("timeout"); spec != "" {
		d, err := timespec.ParseTimeout(spec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		timeout = timespec.Clamp(d, s.opts.MaxWait)
	}

	var after *uint64
	if spec := q.Get("after"); spec != "" {
		v, err := strconv.ParseUint(spec, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after: "+spec)
			return
		}
		after = &v
	}

	w.Header().Set(wire.HeaderWaitTimeout, timespec.FormatSeconds(timeout))

	var (
		res hub.Result
		err error
	)
	switch {
	case after != nil:
		res, err = s.hub.WaitNewer(r.Context(), key, *after, timeout)
	case timeout == 0:
		res, err = s.hub.Peek(key)
	default:
		res, err = s.hub.ReadOrWait(r.Context(), key, timeout)
	}
	if err != nil {
		writeHubError(w, err)
		return
	}

	if res.Status == hub.StatusCancelled {
		if r.Context().Err() != nil {
			// Client is gone; nobody is reading the response.
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, wire.NewReadResponse(res))
		return
	}

	writeJSON(w, http.StatusOK, wire.NewReadResponse(res))
}

// listHandler handles GET /v1/vars.
func (s *Server) listHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wire.KeysResponse{Keys: s.hub.Keys()})
}

// statsHandler handles GET /v1/stats.
func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stats())
}

// healthCheckHandler handles GET /healthz requests.
// Returns 503 when the hub is closed or the configured Redis is unreachable.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := wire.HealthResponse{
		Status: "healthy",
	}

	if s.hub.Closed() {
		response.Status = "unhealthy"
		response.Error = hub.ErrClosed.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	if s.opts.Events != nil {
		// Check Redis connectivity with timeout
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.opts.Events.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			response.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response.Redis = "connected"
	}

	writeJSON(w, http.StatusOK, response)
}

func writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hub.ErrValueTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, hub.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Status: wire.StatusError, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

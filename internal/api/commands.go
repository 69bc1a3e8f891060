package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/dispatch"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// commandResponse is the outcome payload returned by the command
// endpoint. Error carries the terminal error text for non-verified
// outcomes; the CommandOutcome itself never serialises its error.
type commandResponse struct {
	*dispatch.CommandOutcome
	Error string `json:"error,omitempty"`
}

// handleCommand dispatches a desired-state command to a device and
// verifies the result.
//
// Status codes map to the verdict: 200 for verified and unverified
// (the command was accepted; the body says how far verification got),
// 502 when every transport rejected the command or was unreachable.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var desired transport.DesiredState
	if err := json.NewDecoder(r.Body).Decode(&desired); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if desired.IsEmpty() {
		writeBadRequest(w, "command must assert at least one field")
		return
	}

	outcome, err := s.dispatcher.ExecuteCommand(ctx, dev, desired)
	if err != nil && outcome == nil {
		switch {
		case errors.Is(err, dispatch.ErrEmptyCommand):
			writeBadRequest(w, "command must assert at least one field")
		case errors.Is(err, dispatch.ErrNoTransport):
			writeUnavailable(w, "no transport available for device")
		default:
			writeInternalError(w, "command dispatch failed")
		}
		return
	}

	resp := commandResponse{CommandOutcome: outcome}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}

	status := http.StatusOK
	if outcome.Verdict == dispatch.VerdictFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// handleGetDeviceState returns device state.
//
// By default the device is queried live over the transport ladder. With
// ?source=cached the last known state from the registry is returned
// without touching the network.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if r.URL.Query().Get("source") == "cached" {
		writeJSON(w, http.StatusOK, map[string]any{
			"device_id": dev.ID,
			"state":     dev.State,
			"source":    "cached",
		})
		return
	}

	observed, err := s.dispatcher.QueryState(ctx, dev)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNoTransport):
			writeUnavailable(w, "no transport available for device")
		case errors.Is(err, transport.ErrUnreachable):
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "device unreachable on all transports")
		default:
			writeInternalError(w, "state query failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, observed)
}

// handleListCommands returns recent command history for a device,
// newest first. The limit query parameter caps the result count.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commandLog == nil {
		writeNotFound(w, "command history not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if _, err := s.registry.GetDevice(ctx, id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.commandLog.GetCommands(ctx, id, limit)
	if err != nil {
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"commands": entries, "count": len(entries)})
}

// handleTransportHealth returns the per-transport health of one device.
func (s *Server) handleTransportHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":   dev.ID,
		"lan_capable": dev.LANCapable(),
		"transports":  s.dispatcher.Health().Snapshot(dev.ID),
	})
}

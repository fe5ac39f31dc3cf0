package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"content-gate/internal/attribution"
	"content-gate/internal/device"
	"content-gate/internal/gate"
	"content-gate/internal/notify"
	"content-gate/internal/push"
	"content-gate/internal/settings"
)

type Handler struct {
	Gate           *gate.Gate
	Pipeline       *attribution.Pipeline
	Push           *push.Handler
	Device         *device.Provider
	Settings       *settings.Repository
	Notify         *notify.Policy
	ContentTimeout time.Duration
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// Content blocks until the gate has decided what to show.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.ContentTimeout)
	defer cancel()

	screen, err := h.Gate.Resolve(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// still waiting on attribution; the client polls again
			writeJSON(w, http.StatusAccepted, screen)
			return
		}
		log.Error().Err(err).Msg("resolve content")
		writeJSON(w, http.StatusInternalServerError, screen)
		return
	}
	writeJSON(w, http.StatusOK, screen)
}

func (h *Handler) Attribution(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Pipeline.Result())
}

func (h *Handler) ConversionData(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decode(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversion payload")
		return
	}
	h.Pipeline.OnConversionData(payload)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ConversionFailure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid failure payload")
		return
	}
	h.Pipeline.OnConversionFailure(body.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) StartFailure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid failure payload")
		return
	}
	h.Pipeline.OnStartFailure(body.Code, body.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) DeepLink(w http.ResponseWriter, r *http.Request) {
	var dl attribution.DeepLink
	if err := decode(w, r, &dl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid deep link payload")
		return
	}
	h.Pipeline.OnDeepLink(dl)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PushMessage(w http.ResponseWriter, r *http.Request) {
	var data map[string]string
	if err := decode(w, r, &data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid push payload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"override": h.Push.Handle("http", data)})
}

func (h *Handler) PushToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decode(w, r, &body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.Device.SetPushToken(r.Context(), body.Token); err != nil {
		log.Error().Err(err).Msg("store push token")
		writeError(w, http.StatusInternalServerError, "could not store token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Load(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("load settings")
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PutSettings applies a partial update on top of the stored settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Load(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("load settings")
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}
	if err := decode(w, r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	saved, err := h.Settings.Save(r.Context(), s)
	if err != nil {
		log.Error().Err(err).Msg("save settings")
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) PromptDecision(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	granted, _ := strconv.ParseBool(q.Get("granted"))
	rationale, _ := strconv.ParseBool(q.Get("rationale"))

	d, err := h.Notify.Decide(r.Context(), granted, rationale)
	if err != nil {
		log.Error().Err(err).Msg("notification decision")
		writeError(w, http.StatusInternalServerError, "could not decide")
		return
	}
	writeJSON(w, http.StatusOK, map[string]notify.Decision{"decision": d})
}

func (h *Handler) PromptSkip(w http.ResponseWriter, r *http.Request) {
	if err := h.Notify.Skip(r.Context()); err != nil {
		log.Error().Err(err).Msg("notification skip")
		writeError(w, http.StatusInternalServerError, "could not record skip")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PromptResult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Granted   bool `json:"granted"`
		Rationale bool `json:"rationale"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt result")
		return
	}
	if err := h.Notify.Answer(r.Context(), body.Granted, body.Rationale); err != nil {
		log.Error().Err(err).Msg("notification answer")
		writeError(w, http.StatusInternalServerError, "could not record answer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

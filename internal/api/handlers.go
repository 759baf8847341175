// Package api provides HTTP handlers for GapBot endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gap-labs/gapbot/internal/models"
	"github.com/gap-labs/gapbot/internal/reminder"
)

// apologyReply is the failure-containment reply: the transport always receives
// a well-formed reply with a success status so it does not retry-storm.
const apologyReply = "Whoops! Something broke on my end. Please try again in a minute. 🙏"

// whatsappHandler handles inbound messages from the Twilio webhook. Exactly one
// TwiML reply is produced per inbound message; any failure during handling is
// logged and converted into an apology reply with HTTP 200.
func (s *Server) whatsappHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.whatsappHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Error("Server.whatsappHandler: failed to parse webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	if from == "" {
		slog.Warn("Server.whatsappHandler: webhook missing sender")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	numMedia, _ := strconv.Atoi(r.FormValue("NumMedia"))
	msg := models.IncomingMessage{
		From:     from,
		Body:     r.FormValue("Body"),
		NumMedia: numMedia,
		MediaURL: r.FormValue("MediaUrl0"),
	}
	slog.Info("Server.whatsappHandler: incoming message", "from", from, "num_media", msg.NumMedia)

	reply, err := s.handleContained(r.Context(), msg)
	if err != nil {
		slog.Error("Server.whatsappHandler: error handling message", "error", err, "from", from)
		reply = apologyReply
	}

	writeTwiML(w, reply)
	slog.Info("Server.whatsappHandler: reply sent", "from", from, "elapsed_ms", time.Since(start).Milliseconds())
}

// handleContained runs the conversation engine and converts panics into errors
// so the webhook never propagates a handler failure to the transport.
func (s *Server) handleContained(ctx context.Context, msg models.IncomingMessage) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during message handling: %v", rec)
		}
	}()
	return s.engine.HandleMessage(ctx, msg)
}

// pingHandler is the liveness probe.
func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slog.Info("Ping check ✅")
	writeJSONResponse(w, http.StatusOK, models.PingResponse{Status: "ok", Message: "GAP bot alive 🚀"})
}

// remindHandler triggers one reminder sweep, returning the count sent.
// Meant to be invoked by an external scheduler (e.g. hourly cron).
func (s *Server) remindHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !s.msg.Configured() {
		slog.Warn("Server.remindHandler: Twilio not configured, sweep skipped")
		writeJSONResponse(w, http.StatusOK, models.RemindResponse{OK: true, Sent: 0, Note: "Twilio not configured"})
		return
	}

	sent, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		slog.Error("Server.remindHandler: reminder sweep failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Reminder sweep failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.RemindResponse{
		OK:   true,
		Sent: sent,
		Time: time.Now().UTC().Format(reminder.ClockLayout),
	})
}

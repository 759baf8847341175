package api

import (
	"encoding/xml"
	"log/slog"
	"net/http"
)

// twimlResponse is the reply document Twilio expects from a messaging webhook:
// <Response><Message>text</Message></Response>.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// writeTwiML writes a single-message TwiML reply with HTTP 200.
func writeTwiML(w http.ResponseWriter, body string) {
	out, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		// xml.Marshal on a string field cannot realistically fail; keep the
		// transport contract anyway with an empty reply document.
		slog.Error("Server.writeTwiML: failed to marshal TwiML", "error", err)
		out = []byte("<Response></Response>")
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write(append([]byte(xml.Header), out...)); writeErr != nil {
		slog.Error("Server.writeTwiML: failed to write TwiML response", "error", writeErr)
	}
}

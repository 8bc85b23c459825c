package server

import (
	"encoding/json"
	"net/http"

	"github.com/bobmcallan/classfund/internal/common"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// encodeFailedBody is written when a payload cannot be encoded, so a failed
// response still carries a JSON body.
var encodeFailedBody = []byte(`{"error":"Failed to encode response","code":"encode_failed"}` + "\n")

// WriteJSON encodes data before touching the status line. An encoding
// failure becomes a 500 with an ErrorResponse body and is returned.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	body, err := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(encodeFailedBody)
		return err
	}
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
	return nil
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respond writes a payload and logs it when it cannot be encoded.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error().Err(err).Str("path", r.URL.Path).Msg("Response encoding failed")
	}
}

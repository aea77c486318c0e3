package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, result)
//  3. Error is wrapped by core.NewUserError with a user message, code and status
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is written as JSON, with the partial transfer result

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/jsonlines/internal/core"
	"github.com/JonMunkholm/jsonlines/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string               `json:"error"`
	Message   string               `json:"message"`
	Action    string               `json:"action,omitempty"`
	Code      string               `json:"code"`
	RequestID string               `json:"request_id,omitempty"`
	Detail    string               `json:"detail,omitempty"`
	Result    *core.TransferResult `json:"result,omitempty"`
}

// respondError logs err and writes its user-facing form. result may be nil.
//
// Record errors are user input problems, so the technical text (which names
// the line and column) is returned as Detail. Other errors stay server-side.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, result *core.TransferResult) {
	ue := core.NewUserError(err)
	userMsg := ue.User
	status := userMsg.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:     userMsg.Message,
		Message:   userMsg.Message,
		Action:    userMsg.Action,
		Code:      userMsg.Code,
		RequestID: chimw.GetReqID(r.Context()),
		Result:    result,
	}
	if core.IsUserFacing(err) && status < http.StatusInternalServerError {
		resp.Detail = ue.Technical.Error()
	}
	if result != nil {
		// The technical error is already in Detail or the log.
		result.Error = ""
	}
	writeJSONStatus(w, status, resp)
}

package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/quizarena/quiz-arena/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	logger.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		logger.Warn("bad request", "message", msg, "error", err)
	} else {
		logger.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		logger.Warn("not found", "message", msg, "error", err)
	} else {
		logger.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg})
}

// Conflict carries a machine-readable code so clients can distinguish
// rejections that map to the same status.
func Conflict(w http.ResponseWriter, msg, code string) {
	logger.Warn("conflict", "message", msg, "code", code)
	JSON(w, http.StatusConflict, errorBody{Error: msg, Code: code})
}

package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chatrewind/internal/model"
)

// LineEmitter writes newline-delimited JSON message records to an HTTP
// response, flushing after each one so the browser sees messages as they
// complete. Each record is marshaled in full before anything is written; a
// partial record never reaches the wire.
type LineEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewLineEmitter(w http.ResponseWriter) (*LineEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &LineEmitter{w: w, flusher: flusher}, nil
}

func (e *LineEmitter) Emit(msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message failed: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := e.w.Write(payload); err != nil {
		return fmt.Errorf("write message failed: %w", err)
	}
	e.flusher.Flush()
	return nil
}

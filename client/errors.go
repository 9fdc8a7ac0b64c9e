package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx backend response. It implements StatusCode so
// callers can separate auth rejections from transient failures without
// string matching.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// StatusCode returns the HTTP status of the failed call.
func (e *StatusError) StatusCode() int {
	return e.Status
}

type errorBody struct {
	Code  string `json:"Code,omitempty"`
	Error string `json:"Error,omitempty"`
}

func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return se
	}
	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		se.Code = body.Code
		se.Message = body.Error
	}
	return se
}

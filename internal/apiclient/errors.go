package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the normalized form of a failed resource request.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("resource request failed (status %d, code %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("resource request failed (status %d): %s", e.Status, e.Message)
}

// IsAuthFailure reports whether err is a normalized 401, meaning the request
// failed authentication even after the single forced-refresh retry.
func IsAuthFailure(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Status == http.StatusUnauthorized
}

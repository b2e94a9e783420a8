package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status  int
	Code    string
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("commerce api: status %d", e.Status)
	}
	return fmt.Sprintf("commerce api: status %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Type    string          `json:"type"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func parseAPIError(status int, body []byte) *APIError {
	out := &APIError{Status: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	out.Type = parsed.Type
	out.Code = parsed.Code
	out.Message = parsed.Message
	if out.Message == "" && len(parsed.Error) > 0 {
		var s string
		if json.Unmarshal(parsed.Error, &s) == nil {
			out.Message = s
		} else {
			var nested errorBody
			if json.Unmarshal(parsed.Error, &nested) == nil {
				out.Message = nested.Message
				if out.Type == "" {
					out.Type = nested.Type
				}
			}
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

// AsAPIError extracts an APIError from the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports a stale reference: the backend no longer knows the id.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && (apiErr.Status == http.StatusNotFound || apiErr.Type == "not_found")
}

func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

var inventoryMarkers = []string{
	"insufficient_inventory",
	"inventory",
	"out of stock",
	"out_of_stock",
	"not enough stock",
	"insufficient stock",
}

// IsInventoryError reports whether the backend refused because stock ran out.
// Stock-location plumbing errors are not inventory exhaustion.
func IsInventoryError(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	haystack := strings.ToLower(apiErr.Code + " " + apiErr.Type + " " + apiErr.Message)
	if strings.Contains(haystack, "stock location") {
		return false
	}
	for _, marker := range inventoryMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

package apiclient

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Key builds the cache key for a request: "<METHOD>:<fullURL>:<JSON(body)>".
// A nil body, or one that cannot be encoded, contributes an empty string.
func Key(method, fullURL string, body any) string {
	var encoded string
	if body != nil {
		if data, err := json.Marshal(body); err == nil {
			encoded = string(data)
		}
	}
	return strings.ToUpper(method) + ":" + fullURL + ":" + encoded
}

// isMutating reports whether method changes server state.
func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return authz.BadRequest("invalid JSON: %v", err)
	}
	return nil
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, authz.BadRequest("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, authz.BadRequest("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", authz.BadRequest("missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryInt64 extracts an optional int64 query parameter. ok is false when it is absent.
func ParseQueryInt64(r *http.Request, key string) (val int64, ok bool, err error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, false, nil
	}
	val, err = strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, false, authz.BadRequest("invalid integer for query param %s: %s", key, str)
	}
	return val, true, nil
}

// RequireQueryInt64 extracts a mandatory int64 query parameter
func RequireQueryInt64(r *http.Request, key string) (int64, error) {
	val, ok, err := ParseQueryInt64(r, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, authz.BadRequest("%s is required", key)
	}
	return val, nil
}

// RequireQueryString extracts a mandatory string query parameter
func RequireQueryString(r *http.Request, key string) (string, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return "", authz.BadRequest("%s is required", key)
	}
	return val, nil
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// OrganizationIDField is the name fine-grained routes carry the organization id under
const OrganizationIDField = "organizationId"

// Extractor reads an organization id from one location of a request. ok is
// false when the value is absent or is not a positive integer.
type Extractor func(r *http.Request) (orgID int64, ok bool)

// ExtractorChain tries each extractor in order and returns the first success
type ExtractorChain []Extractor

// Extract implements the chain
func (c ExtractorChain) Extract(r *http.Request) (int64, bool) {
	for _, extract := range c {
		if id, ok := extract(r); ok {
			return id, true
		}
	}
	return 0, false
}

// PermissionScope looks for organizationId in the path, then the JSON body,
// then the query string
func PermissionScope() ExtractorChain {
	return ExtractorChain{
		PathParam(OrganizationIDField),
		BodyField(OrganizationIDField),
		QueryParam(OrganizationIDField),
	}
}

// StructuralScope reads only the named path parameter
func StructuralScope(param string) ExtractorChain {
	return ExtractorChain{PathParam(param)}
}

// PathParam extracts a mux path variable
func PathParam(name string) Extractor {
	return func(r *http.Request) (int64, bool) {
		return parseID(mux.Vars(r)[name])
	}
}

// QueryParam extracts a query string value
func QueryParam(name string) Extractor {
	return func(r *http.Request) (int64, bool) {
		return parseID(r.URL.Query().Get(name))
	}
}

// BodyField extracts a top-level field of a JSON object body. The body is
// restored so the handler can read it again.
func BodyField(name string) Extractor {
	return func(r *http.Request) (int64, bool) {
		if r.Body == nil || r.Body == http.NoBody {
			return 0, false
		}
		raw, err := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil || len(raw) == 0 {
			return 0, false
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return 0, false
		}
		value, found := fields[name]
		if !found {
			return 0, false
		}

		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			return parseID(s)
		}
		var n json.Number
		if err := json.Unmarshal(value, &n); err == nil {
			return parseID(n.String())
		}
		return 0, false
	}
}

func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

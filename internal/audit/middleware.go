package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/corebooks/corebooks/internal/ledger/domain"
	"github.com/corebooks/corebooks/internal/platform/middleware"
)

// bodyCapture tees the response body so the interceptor can snapshot it
// after the handler runs.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware intercepts mutating requests (POST/PUT/PATCH/DELETE) and
// enqueues an audit record after the response is written. Read-only
// requests pass through untouched.
func Middleware(rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		orgID := middleware.OrgID(c)
		if orgID == "" {
			orgID = domain.OrgUnknown
		}

		body := append([]byte(nil), capture.buf.Bytes()...)
		rec.Record(Record{
			OrgID:      orgID,
			ActorID:    middleware.ActorID(c),
			Action:     c.Request.Method + " " + c.Request.URL.Path,
			EntityType: entityType(c.Request.URL.Path),
			EntityID:   entityID(body),
			NewData:    body,
		})
	}
}

// entityType tags the record by path substring. Checked in a fixed
// order; paths matching none are left untagged.
func entityType(path string) string {
	switch {
	case strings.Contains(path, "journal"):
		return "journal"
	case strings.Contains(path, "account"):
		return "account"
	case strings.Contains(path, "invoice"):
		return "invoice"
	case strings.Contains(path, "expense"):
		return "expense"
	}
	return ""
}

// entityID pulls the created entity's id out of the response body,
// trying body.id, body.journal.id and body.invoice.id in that order.
func entityID(body []byte) string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	if id := stringField(parsed, "id"); id != "" {
		return id
	}
	for _, key := range []string{"journal", "invoice"} {
		raw, ok := parsed[key]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		if id := stringField(nested, "id"); id != "" {
			return id
		}
	}
	return ""
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

package armlink

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// debugRequest builds a request that tsweb's debug handler will accept
// (debug routes are only served to localhost/tailnet callers).
func debugRequest(method, path string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "127.0.0.1:54321"
	return req
}

func TestAdminSendCommandAPI(t *testing.T) {
	port := NewTestableLinkPort()
	armMux := NewArmMux(port)

	mux := http.NewServeMux()
	armMux.AttachAdminRoutes(mux)

	form := url.Values{"command": {"U=0"}}
	req := debugRequest(http.MethodPost, "/debug/send-command-api", form.Encode())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := string(port.WrittenData()); got != "U=0\n" {
		t.Errorf("command written = %q, want %q", got, "U=0\\n")
	}
}

func TestAdminSendCommandAPIRejectsMissingCommand(t *testing.T) {
	armMux := NewArmMux(NewTestableLinkPort())
	mux := http.NewServeMux()
	armMux.AttachAdminRoutes(mux)

	req := debugRequest(http.MethodPost, "/debug/send-command-api", "command=")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAdminSendCommandAPIRejectsGet(t *testing.T) {
	armMux := NewArmMux(NewTestableLinkPort())
	mux := http.NewServeMux()
	armMux.AttachAdminRoutes(mux)

	req := debugRequest(http.MethodGet, "/debug/send-command-api", "")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

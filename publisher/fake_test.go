package publisher

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeInstagram serves the handful of private API endpoints the client uses
// and records what it received.
type fakeInstagram struct {
	srv *httptest.Server

	mu               sync.Mutex
	logins           []map[string]string
	configures       []map[string]string
	uploads          [][]byte
	uploadHeaders    []http.Header
	configureAuth    []string
	currentUserCalls int

	loginFail       bool
	currentUserFail bool
}

func newFakeInstagram(t *testing.T) *fakeInstagram {
	t.Helper()
	f := &fakeInstagram{}
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, f.handleLogin)
	mux.HandleFunc(currentUserPath, f.handleCurrentUser)
	mux.HandleFunc(configurePath, f.handleConfigure)
	mux.HandleFunc(ruploadPath, f.handleUpload)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeInstagram) URL() string {
	return f.srv.URL
}

func (f *fakeInstagram) handleLogin(w http.ResponseWriter, r *http.Request) {
	payload, err := signedPayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.logins = append(f.logins, payload)
	fail := f.loginFail
	f.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":"fail","message":"The password you entered is incorrect.","error_type":"bad_password"}`)
		return
	}
	auth, _ := json.Marshal(map[string]string{"ds_user_id": "42", "sessionid": "42%3Asess"})
	w.Header().Set("ig-set-authorization", authPrefix+base64.StdEncoding.EncodeToString(auth))
	w.Header().Set("ig-set-x-mid", "mid-1")
	_, _ = io.WriteString(w, `{"logged_in_user":{"pk":42,"username":"diary"},"status":"ok"}`)
}

func (f *fakeInstagram) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.currentUserCalls++
	fail := f.currentUserFail
	f.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"status":"fail","message":"login_required"}`)
		return
	}
	_, _ = io.WriteString(w, `{"user":{"pk":42},"status":"ok"}`)
}

func (f *fakeInstagram) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.uploads = append(f.uploads, body)
	f.uploadHeaders = append(f.uploadHeaders, r.Header.Clone())
	f.mu.Unlock()
	_, _ = io.WriteString(w, `{"upload_id":"1","status":"ok"}`)
}

func (f *fakeInstagram) handleConfigure(w http.ResponseWriter, r *http.Request) {
	payload, err := signedPayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.configures = append(f.configures, payload)
	f.configureAuth = append(f.configureAuth, r.Header.Get("Authorization"))
	f.mu.Unlock()
	_, _ = io.WriteString(w, `{"media":{"pk":3141,"id":"3141_42","code":"Cx1"},"status":"ok"}`)
}

func signedPayload(r *http.Request) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	body := strings.TrimPrefix(r.PostForm.Get("signed_body"), signaturePrefix)
	var payload map[string]string
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "generated_image.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "", 0), &buf
}

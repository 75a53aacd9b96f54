package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFormatter struct {
	output    []byte
	err       error
	upload    []byte
	extension string
	calls     int
}

func (f *fakeFormatter) Process(ctx context.Context, upload io.Reader, extension string,
	deliver port.Deliver) error {
	f.calls++
	f.extension = extension

	buf, err := io.ReadAll(upload)
	if err != nil {
		return err
	}
	f.upload = buf

	if f.err != nil {
		return f.err
	}

	path := filepath.Join(os.TempDir(), "sigfmt-httpapi-"+time.Now().Format("150405.000000000")+".jpg")
	if err := os.WriteFile(path, f.output, 0o600); err != nil {
		return err
	}
	defer os.Remove(path)

	return deliver(ctx, domain.Attempt{Path: path, ByteSize: int64(len(f.output))})
}

func testSettings() Settings {
	return Settings{Listen: "127.0.0.1:0", AllowedOrigin: "https://forms.example.org", MaxUploadBytes: 1 << 20}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		filename    string
		content     []byte
		formatErr   error
		wantStatus  int
		wantBody    string
		wantCalls   int
		wantExt     string
		wantHeaders map[string]string
	}{
		{
			name:       "returns formatted attachment",
			field:      "file",
			filename:   "Scan.PNG",
			content:    []byte("png bytes"),
			wantStatus: http.StatusOK,
			wantBody:   "formatted jpeg",
			wantCalls:  1,
			wantExt:    ".png",
			wantHeaders: map[string]string{
				"Content-Type":        "image/jpeg",
				"Content-Disposition": `attachment; filename="formatted_signature.jpg"`,
			},
		},
		{
			name:       "processing failure hides details",
			field:      "file",
			filename:   "broken.jpg",
			content:    []byte("not an image"),
			formatErr:  domain.ErrDecode,
			wantStatus: http.StatusInternalServerError,
			wantBody:   msgProcessingFailed + "\n",
			wantCalls:  1,
			wantExt:    ".jpg",
		},
		{
			name:       "missing file field",
			field:      "signature",
			filename:   "a.png",
			content:    []byte("png bytes"),
			wantStatus: http.StatusBadRequest,
			wantBody:   msgNoFile + "\n",
		},
		{
			name:       "upload over the limit",
			field:      "file",
			filename:   "huge.png",
			content:    bytes.Repeat([]byte("x"), 2<<20),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   msgTooLarge + "\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			formatter := &fakeFormatter{output: []byte("formatted jpeg"), err: tc.formatErr}
			srv := NewServer(formatter, testSettings(), prometheus.NewRegistry())

			body, contentType := multipartBody(t, tc.field, tc.filename, tc.content)
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantBody, rec.Body.String())
			assert.Equal(t, tc.wantCalls, formatter.calls)
			assert.NotContains(t, rec.Body.String(), os.TempDir())
			if tc.wantCalls > 0 {
				assert.Equal(t, tc.wantExt, formatter.extension)
				assert.Equal(t, tc.content, formatter.upload)
			}
			for k, v := range tc.wantHeaders {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
		})
	}
}

func TestUploadWithoutMultipartBody(t *testing.T) {
	formatter := &fakeFormatter{}
	srv := NewServer(formatter, testSettings(), prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, formatter.calls)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "sigfmt_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(&fakeFormatter{}, testSettings(), reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sigfmt_test_total 1")
}

func TestCORS(t *testing.T) {
	srv := NewServer(&fakeFormatter{}, testSettings(), prometheus.NewRegistry())

	tests := []struct {
		name       string
		origin     string
		wantHeader string
	}{
		{name: "allowed origin", origin: "https://forms.example.org", wantHeader: "https://forms.example.org"},
		{name: "foreign origin", origin: "https://evil.example.com", wantHeader: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tc.wantHeader, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := NewServer(&fakeFormatter{}, testSettings(), prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

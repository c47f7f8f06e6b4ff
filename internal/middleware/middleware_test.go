package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append([]byte("received: "), body...))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name         string
		requestBody  string
		gzipRequest  bool
		acceptsGzip  bool
		want         want
	}{
		{
			name:        "client accepts gzip",
			requestBody: `{"property_id":10}`,
			acceptsGzip: true,
			want: want{
				contentEncoding: "gzip",
				bodyContains:    `received: {"property_id":10}`,
			},
		},
		{
			name:        "client does not accept gzip",
			requestBody: `{"property_id":10}`,
			want: want{
				contentEncoding: "",
				bodyContains:    `received: {"property_id":10}`,
			},
		},
		{
			name:        "compressed request body",
			requestBody: `{"booking_id":5,"prefix":"FAC"}`,
			gzipRequest: true,
			acceptsGzip: true,
			want: want{
				contentEncoding: "gzip",
				bodyContains:    `received: {"booking_id":5,"prefix":"FAC"}`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.requestBody)
			if tt.gzipRequest {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				if _, err := gz.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := gz.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/api/bookings", requestBody)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptsGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(echoHandler))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.want.contentEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				gr, grErr := gzip.NewReader(res.Body)
				if grErr != nil {
					t.Fatalf("new gzip reader: %v", grErr)
				}
				defer gr.Close()
				body, err = io.ReadAll(gr)
			} else {
				body, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			if !strings.Contains(string(body), tt.want.bodyContains) {
				t.Fatalf("body %q does not contain %q", string(body), tt.want.bodyContains)
			}
		})
	}
}

func TestGzipMiddleware_BadCompressedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()

	h := GzipMiddleware(http.HandlerFunc(echoHandler))
	h.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestLogger_PreservesStatus(t *testing.T) {
	logger := zap.NewNop()

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bookings", nil))

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

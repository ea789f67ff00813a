package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
)

func TestTransportFetchSendsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"code":200,"data":[]}`))
	}))
	defer srv.Close()

	tr := NewTransport(time.Second, "HotBoardTest/1.0")
	body, err := tr.Fetch(context.Background(), config.Source{ID: "x", URL: srv.URL, Headers: map[string]string{"Accept": "application/json"}})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(body) != `{"code":200,"data":[]}` {
		t.Fatalf("body = %q", body)
	}
	if gotUA != "HotBoardTest/1.0" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
}

func TestTransportNon2xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewTransport(time.Second, "").Fetch(context.Background(), config.Source{ID: "x", URL: srv.URL})

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("error = %v, want StatusError 503", err)
	}
	if IsTimeout(err) {
		t.Fatalf("status error should not be classified as timeout")
	}
}

func TestTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewTransport(50*time.Millisecond, "").Fetch(context.Background(), config.Source{ID: "slow", URL: srv.URL})

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want TimeoutError inside NetworkError", err)
	}
}

func TestTransportContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewTransport(5*time.Second, "").Fetch(ctx, config.Source{ID: "slow", URL: srv.URL})
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout", err)
	}
}

func TestTransportConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewTransport(time.Second, "").Fetch(context.Background(), config.Source{ID: "gone", URL: url})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
}

func TestTransportRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	tr := NewTransport(time.Second, "")
	tr.maxBytes = 32
	_, err := tr.Fetch(context.Background(), config.Source{ID: "big", URL: srv.URL})
	var ne *NetworkError
	if !errors.As(err, &ne) || !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("error = %v, want NetworkError wrapping ErrResponseTooLarge", err)
	}

	// 恰好等于上限仍然正常返回
	tr.maxBytes = 64
	body, err := tr.Fetch(context.Background(), config.Source{ID: "big", URL: srv.URL})
	if err != nil || len(body) != 64 {
		t.Fatalf("body len = %d, err = %v", len(body), err)
	}
}

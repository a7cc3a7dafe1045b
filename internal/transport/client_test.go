package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "metalinkdl/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Length", "2048")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	info, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if info.Size != 2048 {
		t.Errorf("expected size 2048, got %d", info.Size)
	}
	if !info.AcceptsRanges {
		t.Error("expected AcceptsRanges")
	}
}

func TestHeadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	_, err := client.Head(context.Background(), server.URL)

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if te.Kind != KindHTTPStatus || te.Status != http.StatusNotFound {
		t.Errorf("unexpected classification: %+v", te)
	}
	if te.Transient() {
		t.Error("a 404 must not be transient")
	}
}

func TestGetRange(t *testing.T) {
	data := []byte("Hello, World! This is test data for range requests.")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := strings.TrimPrefix(r.Header.Get("Range"), "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(int(end-start+1)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.GetRange(context.Background(), server.URL, 7, 11)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer resp.Body.Close()

	if !resp.Ranged {
		t.Error("206 response should be marked ranged")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "World" {
		t.Errorf("expected 'World', got %q", body)
	}
}

func TestGetRangeIgnoredByServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Full body despite the Range header.
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 100))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	_, err := client.GetRange(context.Background(), server.URL, 0, 9)
	if !errors.Is(err, ErrRangeNotSupported) {
		t.Fatalf("expected ErrRangeNotSupported, got %v", err)
	}
}

func TestGetRange200WithContentRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-9/100")
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 10))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.GetRange(context.Background(), server.URL, 0, 9)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer resp.Body.Close()
	if !resp.Ranged {
		t.Error("200 with Content-Range should count as a honored range")
	}
}

func TestGetRangeUnsatisfiable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	_, err := client.GetRange(context.Background(), server.URL, 500, 600)
	if !errors.Is(err, ErrRangeNotSupported) {
		t.Fatalf("expected ErrRangeNotSupported, got %v", err)
	}
}

func TestGet(t *testing.T) {
	data := []byte("whole file body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			t.Error("Get must not send a Range header")
		}
		w.Write(data)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(data) {
		t.Errorf("body %q", body)
	}
	if resp.Ranged {
		t.Error("whole-file response must not be marked ranged")
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}

	for _, tt := range tests {
		e := &Error{Kind: KindHTTPStatus, Status: tt.status}
		if e.Transient() != tt.transient {
			t.Errorf("status %d: transient = %v, want %v", tt.status, e.Transient(), tt.transient)
		}
	}

	if !(&Error{Kind: KindTimeout}).Transient() {
		t.Error("timeouts are transient")
	}
	if !(&Error{Kind: KindConnectionReset}).Transient() {
		t.Error("connection resets are transient")
	}
	if (&Error{Kind: KindTLS}).Transient() {
		t.Error("tls failures are not transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("unclassified errors are not transient")
	}
}

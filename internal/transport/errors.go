package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrRangeNotSupported is returned when a mirror answers a range request
// with a whole-body 200. The caller should fall back to whole-stream mode
// for that mirror.
var ErrRangeNotSupported = errors.New("transport: server does not support range requests")

// ErrorKind classifies transport failures for retry decisions.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindConnectionReset
	KindConnection
	KindHTTPStatus
	KindTLS
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionReset:
		return "connection reset"
	case KindConnection:
		return "connection error"
	case KindHTTPStatus:
		return "http status"
	case KindTLS:
		return "tls error"
	}
	return "transport error"
}

// Error is a classified transport failure.
type Error struct {
	Kind   ErrorKind
	Status int
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("transport: %s %d: %s", e.Kind, e.Status, e.URL)
	}
	return fmt.Sprintf("transport: %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether a retry against the same or another mirror
// could plausibly succeed.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionReset, KindConnection:
		return true
	case KindHTTPStatus:
		return e.Status >= 500 || e.Status == 429
	}
	return false
}

// IsTransient classifies arbitrary errors from the transport layer.
func IsTransient(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Transient()
	}
	return false
}

// Classify wraps a request or body-read error with its retry
// classification.
func Classify(url string, err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &Error{Kind: KindConnectionReset, URL: url, Err: err}
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &authErr) {
		return &Error{Kind: KindTLS, URL: url, Err: err}
	}

	return &Error{Kind: KindConnection, URL: url, Err: err}
}

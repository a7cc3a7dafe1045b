package domain

import "errors"

// ErrNoMirrors indicates every candidate resource for a file has exhausted
// its failure budget.
var ErrNoMirrors = errors.New("no mirrors available")

// ErrChecksumMismatch indicates the fully assembled file did not match any
// supported declared checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrPieceMismatch indicates a downloaded segment failed its piece hash.
// It is treated like a transient fetch failure and retried.
var ErrPieceMismatch = errors.New("piece hash mismatch")

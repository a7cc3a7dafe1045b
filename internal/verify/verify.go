// Package verify recomputes declared digests over downloaded bytes. It
// operates on raw algorithm/digest pairs so both piece-level and whole-file
// checks share one code path.
package verify

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/engelphi/metalink-downloader/internal/metalink"
)

// Bytes reports whether data hashes to expected under algo. Unverifiable
// algorithms always report false; callers decide whether that degrades or
// fails.
func Bytes(algo metalink.HashAlgorithm, expected, data []byte) bool {
	got, err := digestReader(algo, bytes.NewReader(data), len(expected))
	if err != nil {
		return false
	}
	return bytes.Equal(got, expected)
}

// File streams the file at path and compares its digest to expected.
func File(path string, algo metalink.HashAlgorithm, expected []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	got, err := digestReader(algo, f, len(expected))
	if err != nil {
		return false, err
	}
	return bytes.Equal(got, expected), nil
}

// FileRange compares the digest of length bytes at offset start against
// expected. A short read reports a mismatch, not an error, so callers can
// treat truncated files as simply invalid.
func FileRange(path string, start, length int64, algo metalink.HashAlgorithm, expected []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	section := io.NewSectionReader(f, start, length)
	got, err := digestReader(algo, section, len(expected))
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(got, expected), nil
}

// digestReader hashes r to completion. For the SHAKE functions the output
// size follows the declared digest; fixed-size algorithms ignore outLen.
func digestReader(algo metalink.HashAlgorithm, r io.Reader, outLen int) ([]byte, error) {
	h := algo.New()
	if h == nil {
		return nil, fmt.Errorf("algorithm %s is not verifiable", algo)
	}

	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}

	if shake, ok := h.(sha3.ShakeHash); ok && outLen > 0 && outLen != h.Size() {
		out := make([]byte, outLen)
		if _, err := io.ReadFull(shake, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return h.Sum(nil), nil
}

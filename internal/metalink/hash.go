package metalink

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm enumerates the IANA hash function textual names admitted by
// RFC 5854 hash and pieces elements. Tags outside the registry parse to
// HashUnsupported and are carried through as unverifiable.
type HashAlgorithm int

const (
	HashUnsupported HashAlgorithm = iota
	HashMD2
	HashMD5
	HashSHA1
	HashSHA224
	HashSHA256
	HashSHA384
	HashSHA512
	HashShake128
	HashShake256
)

// ParseHashAlgorithm maps an IANA textual name to its algorithm. Names are
// matched case-insensitively with surrounding whitespace ignored.
func ParseHashAlgorithm(s string) HashAlgorithm {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md2":
		return HashMD2
	case "md5":
		return HashMD5
	case "sha-1":
		return HashSHA1
	case "sha-224":
		return HashSHA224
	case "sha-256":
		return HashSHA256
	case "sha-384":
		return HashSHA384
	case "sha-512":
		return HashSHA512
	case "shake128":
		return HashShake128
	case "shake256":
		return HashShake256
	}
	return HashUnsupported
}

func (a HashAlgorithm) String() string {
	switch a {
	case HashMD2:
		return "md2"
	case HashMD5:
		return "md5"
	case HashSHA1:
		return "sha-1"
	case HashSHA224:
		return "sha-224"
	case HashSHA256:
		return "sha-256"
	case HashSHA384:
		return "sha-384"
	case HashSHA512:
		return "sha-512"
	case HashShake128:
		return "shake128"
	case HashShake256:
		return "shake256"
	}
	return "unsupported"
}

// Strength orders algorithms from weakest to strongest. Whole-file
// verification picks the strongest declared algorithm that is verifiable.
func (a HashAlgorithm) Strength() int {
	switch a {
	case HashMD2:
		return 1
	case HashMD5:
		return 2
	case HashSHA1:
		return 3
	case HashSHA224:
		return 4
	case HashSHA256:
		return 5
	case HashSHA384:
		return 6
	case HashSHA512:
		return 7
	case HashShake128:
		return 8
	case HashShake256:
		return 9
	}
	return 0
}

// DigestSize returns the fixed digest length in bytes, or 0 for the SHAKE
// functions, whose output length follows the declared digest, and for
// unsupported tags.
func (a HashAlgorithm) DigestSize() int {
	switch a {
	case HashMD2, HashMD5:
		return 16
	case HashSHA1:
		return 20
	case HashSHA224:
		return 28
	case HashSHA256:
		return 32
	case HashSHA384:
		return 48
	case HashSHA512:
		return 64
	}
	return 0
}

// Verifiable reports whether a digest of this algorithm can be recomputed
// locally. MD2 has no implementation available, so it degrades to
// unverifiable along with unknown tags.
func (a HashAlgorithm) Verifiable() bool {
	switch a {
	case HashMD5, HashSHA1, HashSHA224, HashSHA256, HashSHA384, HashSHA512, HashShake128, HashShake256:
		return true
	}
	return false
}

// New returns a fresh hash state for the algorithm. Callers must check
// Verifiable first; New returns nil for anything else.
func (a HashAlgorithm) New() hash.Hash {
	switch a {
	case HashMD5:
		return md5.New()
	case HashSHA1:
		return sha1.New()
	case HashSHA224:
		return sha256.New224()
	case HashSHA256:
		return sha256.New()
	case HashSHA384:
		return sha512.New384()
	case HashSHA512:
		return sha512.New()
	case HashShake128:
		return sha3.NewShake128()
	case HashShake256:
		return sha3.NewShake256()
	}
	return nil
}

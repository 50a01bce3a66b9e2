package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
)

// Outcome classifies the result of a digest verification.
type Outcome string

const (
	OutcomeMatch    Outcome = "match"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeNotFound Outcome = "not_found"
)

// Result carries both digests so mismatches can be reconciled by hand.
type Result struct {
	Outcome  Outcome
	Expected string
	Actual   string
}

const hexDigestLen = sha256.Size * 2

// ValidDigest reports whether value is a well-formed lowercase-insensitive
// SHA-256 hex digest.
func ValidDigest(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) != hexDigestLen {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// Verify hashes the file at path and compares against expectedDigest.
// A missing or unreadable file yields OutcomeNotFound; a malformed expected
// digest is an error, not an outcome.
func Verify(path string, expectedDigest string) (Result, error) {
	expectedDigest = strings.ToLower(strings.TrimSpace(expectedDigest))
	if !ValidDigest(expectedDigest) {
		return Result{}, fmt.Errorf("malformed expected digest: %q", expectedDigest)
	}

	f, err := os.Open(path)
	if err != nil {
		if isNotReadable(err) {
			return Result{Outcome: OutcomeNotFound, Expected: expectedDigest}, nil
		}
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return VerifyReader(f, expectedDigest)
}

// VerifyReader hashes r to EOF and compares against expectedDigest.
func VerifyReader(r io.Reader, expectedDigest string) (Result, error) {
	expectedDigest = strings.ToLower(strings.TrimSpace(expectedDigest))
	if !ValidDigest(expectedDigest) {
		return Result{}, fmt.Errorf("malformed expected digest: %q", expectedDigest)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Result{}, fmt.Errorf("hash: %w", err)
	}
	actual := hex.EncodeToString(hasher.Sum(nil))

	outcome := OutcomeMismatch
	if actual == expectedDigest {
		outcome = OutcomeMatch
	}
	return Result{Outcome: outcome, Expected: expectedDigest, Actual: actual}, nil
}

// RecordSHA256 computes the canonical integrity digest of a record by
// hashing its JSON encoding. Used for the integrity_sha256 columns.
func RecordSHA256(v any) (string, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal integrity input: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}

func isNotReadable(err error) bool {
	if os.IsNotExist(err) || os.IsPermission(err) {
		return true
	}
	// A path component that is not a directory also means no file exists
	// at the recorded location.
	return errors.Is(err, syscall.ENOTDIR)
}

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ComputeSHA256 computes the lowercase hex SHA256 of a file, streaming it so
// large model files are not loaded into memory.
func ComputeSHA256(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ValidateSHA256 checks that s looks like a hex SHA256 digest.
func ValidateSHA256(s string) error {
	if len(s) != sha256.Size*2 {
		return fmt.Errorf("invalid SHA256 length: expected %d characters, got %d", sha256.Size*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("invalid SHA256 format: %w", err)
	}
	return nil
}

// VerifyChecksum compares a file's SHA256 against expected (case-insensitive).
// A mismatch is reported as ErrChecksumMismatch.
func VerifyChecksum(path, expected string) error {
	if err := ValidateSHA256(expected); err != nil {
		return err
	}

	actual, err := ComputeSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, path, strings.ToLower(expected), actual)
	}
	return nil
}

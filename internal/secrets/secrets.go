// Package secrets decrypts sops-encrypted files checked into the repository
// and exposes their plaintext as short-lived temporary files.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getsops/sops/v3/decrypt"
)

// Decrypter returns the plaintext of an encrypted file.
type Decrypter interface {
	Decrypt(path string) ([]byte, error)
}

// SopsDecrypter decrypts files with sops, using whatever key material
// (KMS, age, PGP) the environment provides.
type SopsDecrypter struct{}

// NewSopsDecrypter returns the production Decrypter.
func NewSopsDecrypter() *SopsDecrypter {
	return &SopsDecrypter{}
}

// Decrypt implements Decrypter.
func (SopsDecrypter) Decrypt(path string) ([]byte, error) {
	data, err := decrypt.File(path, formatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("sops decrypt %q: %w", path, err)
	}
	return data, nil
}

// formatForPath maps a file extension to a sops store format.
func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".env":
		return "dotenv"
	case ".ini":
		return "ini"
	default:
		return "binary"
	}
}

// WithDecryptedFile decrypts path with d, writes the plaintext to a
// private temporary file and calls fn with that file's path. The
// temporary file is removed when fn returns, whether or not it failed.
func WithDecryptedFile(d Decrypter, path string, fn func(plainPath string) error) error {
	plain, err := d.Decrypt(path)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "fleetcost-secret-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := f.Write(plain); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return fn(tmpPath)
}

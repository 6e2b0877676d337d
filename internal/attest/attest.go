// Package attest signs rendered reports with an OpenPGP detached signature
// and verifies them.
package attest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	herr "github.com/girste/hardenspec/internal/errors"
)

// SignatureSuffix is appended to the report path for the signature file
const SignatureSuffix = ".asc"

// Signer holds an unlocked signing key
type Signer struct {
	entity *openpgp.Entity
}

// LoadSigner reads the first private key from an armored key file. An
// encrypted key is unlocked with passphrase.
func LoadSigner(keyPath string, passphrase []byte) (*Signer, error) {
	entities, err := readKeyRing(keyPath)
	if err != nil {
		return nil, err
	}

	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		if entity.PrivateKey.Encrypted {
			if len(passphrase) == 0 {
				return nil, herr.Wrap(herr.ErrSignature, "signing key %s is passphrase protected", keyPath)
			}
			if err := entity.DecryptPrivateKeys(passphrase); err != nil {
				return nil, herr.Wrap(herr.ErrSignature, "unlock signing key: %v", err)
			}
		}
		return &Signer{entity: entity}, nil
	}
	return nil, herr.Wrap(herr.ErrSignature, "no private key in %s", keyPath)
}

// KeyID returns the signing key ID in hex
func (s *Signer) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// Sign writes an armored detached signature over message to w
func (s *Signer) Sign(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, message, nil); err != nil {
		return herr.Wrap(herr.ErrSignature, "sign: %v", err)
	}
	return nil
}

// SignBytes signs data and writes the signature next to reportPath,
// returning the signature path.
func (s *Signer) SignBytes(reportPath string, data []byte) (string, error) {
	var sig bytes.Buffer
	if err := s.Sign(&sig, bytes.NewReader(data)); err != nil {
		return "", err
	}
	sigPath := reportPath + SignatureSuffix
	if err := os.WriteFile(sigPath, sig.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write signature: %w", err)
	}
	return sigPath, nil
}

// Verifier checks detached signatures against a public keyring
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier with the keys from an armored or binary
// key file.
func NewVerifier(keyPath string) (*Verifier, error) {
	entities, err := readKeyRing(keyPath)
	if err != nil {
		return nil, err
	}
	return &Verifier{keyring: entities}, nil
}

// Verify checks the signature over message and returns the signer's key ID
func (v *Verifier) Verify(message, signature io.Reader) (string, error) {
	signer, err := openpgp.CheckArmoredDetachedSignature(v.keyring, message, signature, nil)
	if err != nil {
		return "", herr.Wrap(herr.ErrSignature, "signature verification failed: %v", err)
	}
	return signer.PrimaryKey.KeyIdString(), nil
}

// VerifyFile checks sigPath against reportPath
func (v *Verifier) VerifyFile(reportPath, sigPath string) (string, error) {
	//nolint:gosec // G304: paths are given on the command line
	report, err := os.Open(reportPath)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	//nolint:errcheck // Defer close
	defer report.Close()

	//nolint:gosec // G304: paths are given on the command line
	sig, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sig.Close()

	return v.Verify(report, sig)
}

func readKeyRing(keyPath string) (openpgp.EntityList, error) {
	//nolint:gosec // G304: keyPath is user-provided
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		// Try reading as binary
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("failed to reset key file: %w", seekErr)
		}
		entities, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, herr.Wrap(herr.ErrParseFailure, "read key %s: %v", keyPath, err)
		}
	}
	if len(entities) == 0 {
		return nil, herr.Wrap(herr.ErrNotFound, "no keys found in %s", keyPath)
	}
	return entities, nil
}

package wstransport

import (
	"crypto/sha1" //nolint:gosec // SHA-1 fingerprints are still issued for device endpoints
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"

	"github.com/arloliu/go-duplex/duplex"
)

// pinnedTLSConfig returns a TLS configuration that accepts exactly the leaf certificate matching
// fingerprint, a SHA-1 or SHA-256 hex digest. Chain verification is replaced by the pin.
func pinnedTLSConfig(serverName string, fingerprint string) (*tls.Config, error) {
	fp := duplex.NormalizeFingerprint(fingerprint)
	if len(fp) != 2*sha1.Size && len(fp) != 2*sha256.Size {
		return nil, fmt.Errorf("invalid fingerprint length %d", len(fp))
	}

	if _, err := hex.DecodeString(fp); err != nil {
		return nil, fmt.Errorf("invalid fingerprint: %w", err)
	}

	return &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, //nolint:gosec // verified by VerifyConnection
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return ErrFingerprintMismatch
			}

			if certFingerprint(cs.PeerCertificates[0].Raw, len(fp)) != fp {
				return ErrFingerprintMismatch
			}

			return nil
		},
	}, nil
}

// certFingerprint returns the hex digest of a DER certificate, SHA-1 for 40 digits and SHA-256 otherwise.
func certFingerprint(der []byte, digits int) string {
	if digits == 2*sha1.Size {
		sum := sha1.Sum(der) //nolint:gosec
		return hex.EncodeToString(sum[:])
	}

	sum := sha256.Sum256(der)

	return hex.EncodeToString(sum[:])
}

package access

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// SIGNED REGISTRY BUNDLES
// ============================================================================

// SignedConfigBundle wraps a registry payload with an ed25519 signature over
// its canonical checksum. How the bundle travels between the admin system
// and the engine is the embedder's concern; the engine only verifies and
// applies.
type SignedConfigBundle struct {
	Config    *Config        `json:"config"`
	Checksum  string         `json:"checksum"`
	Signature string         `json:"signature"`
	SignedAt  time.Time      `json:"signed_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// configChecksum is a hex sha256 over the config's canonical JSON form.
func configChecksum(cfg *Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SignConfig produces a signed bundle for a registry payload.
func SignConfig(priv ed25519.PrivateKey, cfg *Config) (*SignedConfigBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sign config: nil config")
	}
	checksum, err := configChecksum(cfg)
	if err != nil {
		return nil, fmt.Errorf("sign config: %w", err)
	}
	sig := ed25519.Sign(priv, []byte(checksum))
	return &SignedConfigBundle{
		Config:    cfg,
		Checksum:  checksum,
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  time.Now(),
	}, nil
}

// VerifyConfigBundle checks that the bundle's checksum matches its payload
// and that the signature over the checksum verifies with the public key.
func VerifyConfigBundle(pub ed25519.PublicKey, b *SignedConfigBundle) (bool, error) {
	if b == nil || b.Config == nil {
		return false, fmt.Errorf("verify bundle: empty bundle")
	}
	checksum, err := configChecksum(b.Config)
	if err != nil {
		return false, fmt.Errorf("verify bundle: %w", err)
	}
	if checksum != b.Checksum {
		return false, fmt.Errorf("verify bundle: checksum mismatch")
	}
	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return false, fmt.Errorf("verify bundle: decode signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(checksum), sig) {
		return false, fmt.Errorf("verify bundle: bad signature")
	}
	return true, nil
}

// ApplySignedBundle verifies a bundle and applies its config. A bundle that
// fails verification changes nothing.
func (s *Service) ApplySignedBundle(ctx context.Context, pub ed25519.PublicKey, b *SignedConfigBundle) error {
	ok, err := VerifyConfigBundle(pub, b)
	if err != nil || !ok {
		return fmt.Errorf("bundle verification failed: %v", err)
	}
	return s.ApplyConfig(ctx, b.Config)
}

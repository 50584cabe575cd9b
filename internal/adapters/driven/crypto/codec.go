package crypto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// ErrSealedWithoutKey is returned when a sealed blob is read by a codec
// that has no key configured.
var ErrSealedWithoutKey = errors.New("credential is sealed but no key is configured")

// CredentialCodec converts credentials to and from the stored blob.
// With a Sealer the JSON is encrypted; without one it is stored as is.
// Plain JSON blobs stay readable after a key is introduced.
type CredentialCodec struct {
	sealer *Sealer
}

// NewCredentialCodec creates a codec. sealer may be nil.
func NewCredentialCodec(sealer *Sealer) *CredentialCodec {
	return &CredentialCodec{sealer: sealer}
}

// Sealed reports whether the codec encrypts what it encodes.
func (c *CredentialCodec) Sealed() bool {
	return c != nil && c.sealer != nil
}

// Encode validates cred and serializes it.
func (c *CredentialCodec) Encode(cred *domain.Credential) ([]byte, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	if !c.Sealed() {
		return data, nil
	}
	return c.sealer.Seal(data)
}

// Decode parses a stored blob and validates the result. A blob that cannot
// be opened, parsed or validated yields an error wrapping
// domain.ErrInvalidCredential. ErrSealedWithoutKey is a configuration
// problem and is returned unwrapped.
func (c *CredentialCodec) Decode(blob []byte) (*domain.Credential, error) {
	data := blob
	if IsSealed(blob) {
		if !c.Sealed() {
			return nil, ErrSealedWithoutKey
		}
		plaintext, err := c.sealer.Open(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
		}
		data = plaintext
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &cred, nil
}

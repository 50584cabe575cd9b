package secret

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SecretIssuer = (*Issuer)(nil)

// DefaultSize is the number of random bytes in a secret (256 bits).
const DefaultSize = 32

// Issuer generates unguessable authorization secrets from crypto/rand.
type Issuer struct {
	size int
}

// NewIssuer creates an issuer producing secrets of DefaultSize bytes.
func NewIssuer() *Issuer {
	return &Issuer{size: DefaultSize}
}

// Generate returns a fresh URL-safe secret.
func (i *Issuer) Generate() (string, error) {
	b := make([]byte, i.size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

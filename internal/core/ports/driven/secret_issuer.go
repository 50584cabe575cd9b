package driven

// SecretIssuer generates one-time correlation tokens for authorization
// attempts. Tokens must be unguessable; uniqueness is enforced by the
// CredentialStore on write.
type SecretIssuer interface {
	Generate() (string, error)
}

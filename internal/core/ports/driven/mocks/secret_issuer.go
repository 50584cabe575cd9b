package mocks

import (
	"fmt"
	"sync"
)

// SequenceSecretIssuer returns predictable secrets: S1, S2, ...
type SequenceSecretIssuer struct {
	mu  sync.Mutex
	n   int
	Err error
}

func (s *SequenceSecretIssuer) Generate() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("S%d", s.n), nil
}

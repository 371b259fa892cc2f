package cloud

import "sync"

// Credential holds the bearer token used to authenticate against the cloud.
type Credential struct {
	mu    sync.RWMutex
	token string
}

// NewCredential creates a credential for the given API token
func NewCredential(token string) *Credential {
	return &Credential{token: token}
}

// Token returns the current token
func (c *Credential) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the token in place.
// Every client holding this credential uses the new token from the next request on.
func (c *Credential) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Authorization returns the value of the Authorization header
func (c *Credential) Authorization() string {
	return "Bearer " + c.Token()
}

// Package connector defines read-only adapters to external services
// (calendar, mail, file storage, ...) that answer lexical searches with
// core.RetrievedItem values.
//
// Connectors consume already-valid credentials. Acquiring and refreshing
// tokens is the host application's job.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/becomeliminal/nim-recall/core"
)

// Well-known connector kinds.
const (
	KindCalendar = "calendar"
	KindEmail    = "email"
	KindDrive    = "drive"
)

// DefaultSimilarity holds the fixed pseudo-similarity given to lexical hits
// of each kind so they merge with cosine-scored items on one scale.
var DefaultSimilarity = map[string]float64{
	KindCalendar: 0.85,
	KindEmail:    0.80,
	KindDrive:    0.75,
}

// FallbackSimilarity is used for kinds missing from DefaultSimilarity.
const FallbackSimilarity = 0.70

// SimilarityFor returns the pseudo-similarity for kind.
func SimilarityFor(kind string) float64 {
	if s, ok := DefaultSimilarity[kind]; ok {
		return s
	}
	return FallbackSimilarity
}

// Connector searches one external service.
type Connector interface {
	// Kind names the service, e.g. "calendar". Items returned by Search
	// carry type core.ConnectorType(Kind()).
	Kind() string

	// Search runs a lexical query with the raw user text and returns at
	// most limit items.
	Search(ctx context.Context, query string, creds Credentials, limit int) ([]core.RetrievedItem, error)
}

// Credentials authorize one owner against one external service.
type Credentials struct {
	AccessToken string
	TokenType   string // defaults to Bearer
	Expiry      time.Time

	// Account identifies the external account, e.g. a mailbox address.
	Account string
}

// Token converts c to an oauth2 token.
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   c.TokenType,
		Expiry:      c.Expiry,
	}
}

// TokenSource returns a source that always yields c. There is no refresh.
func (c Credentials) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(c.Token())
}

// Valid reports whether c holds an unexpired access token.
func (c Credentials) Valid() bool {
	return c.Token().Valid()
}

// ErrNoCredentials means the owner never connected the service.
var ErrNoCredentials = errors.New("no credentials")

// CredentialProvider looks up credentials for an owner and connector kind.
// Missing credentials are reported as core.ErrSourceNotProvisioned.
type CredentialProvider interface {
	Credentials(ctx context.Context, ownerID, kind string) (Credentials, error)
}

// StaticCredentials is an in-memory CredentialProvider.
type StaticCredentials struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewStaticCredentials creates an empty provider.
func NewStaticCredentials() *StaticCredentials {
	return &StaticCredentials{creds: make(map[string]Credentials)}
}

// Set stores credentials for ownerID and kind.
func (s *StaticCredentials) Set(ownerID, kind string, c Credentials) {
	s.mu.Lock()
	s.creds[ownerID+"/"+kind] = c
	s.mu.Unlock()
}

// Remove forgets the credentials for ownerID and kind.
func (s *StaticCredentials) Remove(ownerID, kind string) {
	s.mu.Lock()
	delete(s.creds, ownerID+"/"+kind)
	s.mu.Unlock()
}

// Credentials implements CredentialProvider.
func (s *StaticCredentials) Credentials(_ context.Context, ownerID, kind string) (Credentials, error) {
	s.mu.RLock()
	c, ok := s.creds[ownerID+"/"+kind]
	s.mu.RUnlock()
	if !ok {
		return Credentials{}, core.NotProvisioned(kind, fmt.Errorf("owner %s: %w", ownerID, ErrNoCredentials))
	}
	return c, nil
}

// Summarize renders a title and its detail as one line.
func Summarize(title, detail string) string {
	switch {
	case title == "":
		return detail
	case detail == "":
		return title
	}
	return title + ": " + detail
}

package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/richxcame/scamshield/pkg/logger"
	"go.uber.org/zap"
)

// ProviderType enumerates supported secret backends.
type ProviderType string

const (
	ProviderNone ProviderType = ""
	ProviderAWS  ProviderType = "aws-sm"
	ProviderFile ProviderType = "file"
)

var (
	// ErrProviderNotConfigured is returned when a reference names a backend that is not set up.
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	// ErrInvalidReference indicates an invalid or empty reference string.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrKeyNotFound is returned when a requested key does not exist in the secret payload.
	ErrKeyNotFound = errors.New("secrets: key not found")
)

// Reference describes the logical location of a secret within a provider.
// Syntax: provider://path[@version][#key]
type Reference struct {
	Name     string
	Provider ProviderType
	Path     string
	Version  string
	Key      string
}

// CacheKey returns the cache identifier for the reference.
func (r Reference) CacheKey() string {
	key := string(r.Provider) + "|" + r.Path
	if r.Version != "" {
		key += "@" + r.Version
	}
	return key
}

// IsReference reports whether raw names a secret rather than holding a literal value
func IsReference(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, string(ProviderAWS)+"://") || strings.HasPrefix(raw, string(ProviderFile)+"://")
}

// ParseReference converts a raw reference string into a Reference.
func ParseReference(name, raw string) (Reference, error) {
	ref := Reference{Name: name}

	clean := strings.TrimSpace(raw)
	idx := strings.Index(clean, "://")
	if idx <= 0 {
		return ref, ErrInvalidReference
	}
	ref.Provider = ProviderType(clean[:idx])
	clean = clean[idx+3:]

	if i := strings.Index(clean, "#"); i >= 0 {
		ref.Key = strings.TrimSpace(clean[i+1:])
		clean = strings.TrimSpace(clean[:i])
	}
	if i := strings.LastIndex(clean, "@"); i >= 0 {
		ref.Version = strings.TrimSpace(clean[i+1:])
		clean = strings.TrimSpace(clean[:i])
	}

	ref.Path = strings.Trim(clean, "/")
	if ref.Path == "" {
		return ref, ErrInvalidReference
	}
	return ref, nil
}

// Secret is a resolved secret payload.
type Secret struct {
	Data        map[string]string
	Version     string
	RetrievedAt time.Time
}

// Value returns a single entry from the secret payload.
func (s Secret) Value(key string) (string, bool) {
	val, ok := s.Data[key]
	return val, ok && val != ""
}

// single returns the only value of a one-entry payload.
func (s Secret) single() (string, bool) {
	if len(s.Data) != 1 {
		return "", false
	}
	for _, v := range s.Data {
		return v, v != ""
	}
	return "", false
}

type provider interface {
	Name() ProviderType
	Fetch(ctx context.Context, ref Reference) (Secret, error)
}

// Config selects the backends a Resolver may use.
type Config struct {
	AWSRegion   string
	AWSEndpoint string
	FileBase    string
	CacheTTL    time.Duration
}

// Resolver turns configuration values that reference a secret store into
// the secret they name. Literal values pass through unchanged.
type Resolver struct {
	cfg Config

	mu        sync.Mutex
	providers map[ProviderType]provider
	cache     map[string]cachedSecret
}

type cachedSecret struct {
	secret    Secret
	expiresAt time.Time
}

// NewResolver creates a resolver. Backends are connected on first use.
func NewResolver(cfg Config) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Resolver{
		cfg:       cfg,
		providers: make(map[ProviderType]provider),
		cache:     make(map[string]cachedSecret),
	}
}

// Resolve returns raw itself when it is a literal, otherwise the referenced
// secret value. A reference without #key must point at a single-value secret.
func (r *Resolver) Resolve(ctx context.Context, name, raw string) (string, error) {
	if !IsReference(raw) {
		return raw, nil
	}
	ref, err := ParseReference(name, raw)
	if err != nil {
		return "", err
	}

	secret, err := r.get(ctx, ref)
	if err != nil {
		logger.Warn("secret fetch failed",
			zap.String("secret_name", ref.Name),
			zap.String("provider", string(ref.Provider)),
			zap.Error(err),
		)
		return "", err
	}

	if ref.Key != "" {
		if v, ok := secret.Value(ref.Key); ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: %s in %s", ErrKeyNotFound, ref.Key, ref.Name)
	}
	if v, ok := secret.single(); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s holds %d values, select one with #key", ErrKeyNotFound, ref.Name, len(secret.Data))
}

func (r *Resolver) get(ctx context.Context, ref Reference) (Secret, error) {
	r.mu.Lock()
	if entry, ok := r.cache[ref.CacheKey()]; ok && time.Now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.secret, nil
	}
	r.mu.Unlock()

	prov, err := r.provider(ctx, ref.Provider)
	if err != nil {
		return Secret{}, err
	}

	secret, err := prov.Fetch(ctx, ref)
	if err != nil {
		return Secret{}, err
	}
	secret.RetrievedAt = time.Now().UTC()

	r.mu.Lock()
	r.cache[ref.CacheKey()] = cachedSecret{secret: secret, expiresAt: time.Now().Add(r.cfg.CacheTTL)}
	r.mu.Unlock()

	logger.Info("secret fetched",
		zap.String("secret_name", ref.Name),
		zap.String("provider", string(ref.Provider)),
		zap.String("version", secret.Version),
	)
	return secret, nil
}

func (r *Resolver) provider(ctx context.Context, t ProviderType) (provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[t]; ok {
		return p, nil
	}

	var (
		p   provider
		err error
	)
	switch t {
	case ProviderAWS:
		if r.cfg.AWSRegion == "" {
			return nil, fmt.Errorf("%w: %s needs a region", ErrProviderNotConfigured, t)
		}
		p, err = newAWSProvider(ctx, r.cfg.AWSRegion, r.cfg.AWSEndpoint)
	case ProviderFile:
		p, err = newFileProvider(r.cfg.FileBase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, t)
	}
	if err != nil {
		return nil, err
	}
	r.providers[t] = p
	return p, nil
}

package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ============== Reference Tests ==============

func TestIsReference(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"aws-sm://prod/scamshield/db#password", true},
		{"  file://fact-check/api-key", true},
		{"plain-password", false},
		{"https://example.com", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsReference(tc.raw); got != tc.want {
			t.Errorf("IsReference(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("db", "aws-sm://prod/scamshield/db@v7#password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Provider != ProviderAWS || ref.Path != "prod/scamshield/db" || ref.Version != "v7" || ref.Key != "password" {
		t.Errorf("unexpected reference %+v", ref)
	}
	if ref.CacheKey() != "aws-sm|prod/scamshield/db@v7" {
		t.Errorf("unexpected cache key %q", ref.CacheKey())
	}
}

func TestParseReference_Invalid(t *testing.T) {
	for _, raw := range []string{"", "no-provider", "aws-sm://", "file:///#key"} {
		if _, err := ParseReference("x", raw); !errors.Is(err, ErrInvalidReference) {
			t.Errorf("ParseReference(%q) error = %v, want ErrInvalidReference", raw, err)
		}
	}
}

// ============== Resolver Tests ==============

type fakeProvider struct {
	secret Secret
	err    error
	calls  int
}

func (f *fakeProvider) Name() ProviderType { return ProviderAWS }

func (f *fakeProvider) Fetch(context.Context, Reference) (Secret, error) {
	f.calls++
	return f.secret, f.err
}

func resolverWith(p *fakeProvider) *Resolver {
	r := NewResolver(Config{})
	r.providers[ProviderAWS] = p
	return r
}

func TestResolve_LiteralPassesThrough(t *testing.T) {
	r := NewResolver(Config{})
	got, err := r.Resolve(context.Background(), "db", "s3cret")
	if err != nil || got != "s3cret" {
		t.Errorf("Resolve literal = %q, %v", got, err)
	}
}

func TestResolve_SelectsKeyAndCaches(t *testing.T) {
	p := &fakeProvider{secret: Secret{Data: map[string]string{"username": "intel", "password": "pw"}}}
	r := resolverWith(p)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), "db", "aws-sm://prod/db#password")
		if err != nil || got != "pw" {
			t.Fatalf("Resolve = %q, %v", got, err)
		}
	}
	if p.calls != 1 {
		t.Errorf("expected one fetch, got %d", p.calls)
	}
}

func TestResolve_SingleValueWithoutKey(t *testing.T) {
	r := resolverWith(&fakeProvider{secret: Secret{Data: map[string]string{"value": "api-key"}}})
	got, err := r.Resolve(context.Background(), "fact_check", "aws-sm://prod/fact-check")
	if err != nil || got != "api-key" {
		t.Errorf("Resolve = %q, %v", got, err)
	}
}

func TestResolve_AmbiguousOrMissingKey(t *testing.T) {
	r := resolverWith(&fakeProvider{secret: Secret{Data: map[string]string{"a": "1", "b": "2"}}})

	if _, err := r.Resolve(context.Background(), "x", "aws-sm://multi"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound without key, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "x", "aws-sm://multi#c"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for missing key, got %v", err)
	}
}

func TestResolve_FetchErrorNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("throttled")}
	r := resolverWith(p)

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve(context.Background(), "db", "aws-sm://prod/db#password"); err == nil {
			t.Fatal("expected error")
		}
	}
	if p.calls != 2 {
		t.Errorf("failed fetches must not be cached, got %d calls", p.calls)
	}
}

func TestResolve_AWSWithoutRegion(t *testing.T) {
	r := NewResolver(Config{})
	if _, err := r.Resolve(context.Background(), "db", "aws-sm://prod/db#password"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Errorf("expected ErrProviderNotConfigured, got %v", err)
	}
}

// ============== File Provider Tests ==============

func TestFileProvider(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "fact-check-key"), []byte("k-123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(base, "postgres")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, "username"), []byte("intel"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "password"), []byte(" pw "), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "..data"), []byte("ignored"), 0o600)

	r := NewResolver(Config{FileBase: base})

	got, err := r.Resolve(context.Background(), "fact_check", "file://fact-check-key")
	if err != nil || got != "k-123" {
		t.Errorf("file secret = %q, %v", got, err)
	}

	got, err = r.Resolve(context.Background(), "db", "file://postgres#password")
	if err != nil || got != "pw" {
		t.Errorf("dir secret = %q, %v", got, err)
	}

	if _, err := r.Resolve(context.Background(), "db", "file://../../etc/passwd"); err == nil {
		t.Error("paths must not escape the base directory")
	}
}

func TestFileProvider_MissingBase(t *testing.T) {
	if _, err := newFileProvider(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing base")
	}
}

// ============== AWS Provider Tests ==============

type fakeSecretsAPI struct {
	out   *secretsmanager.GetSecretValueOutput
	err   error
	input *secretsmanager.GetSecretValueInput
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestAWSProvider_JSONPayload(t *testing.T) {
	api := &fakeSecretsAPI{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"username":"intel","password":"pw"}`),
		VersionId:    aws.String("v3"),
	}}
	p := &awsProvider{client: api}

	secret, err := p.Fetch(context.Background(), Reference{Path: "prod/db", Version: "v3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := secret.Value("password"); v != "pw" {
		t.Errorf("password = %q", v)
	}
	if secret.Version != "v3" {
		t.Errorf("version = %q", secret.Version)
	}
	if aws.ToString(api.input.SecretId) != "prod/db" || aws.ToString(api.input.VersionId) != "v3" {
		t.Errorf("unexpected input %+v", api.input)
	}
}

func TestAWSProvider_PlainString(t *testing.T) {
	p := &awsProvider{client: &fakeSecretsAPI{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("just-a-key"),
	}}}

	secret, err := p.Fetch(context.Background(), Reference{Path: "prod/fact-check"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := secret.Value("value"); v != "just-a-key" {
		t.Errorf("value = %q", v)
	}
}

func TestAWSProvider_Error(t *testing.T) {
	p := &awsProvider{client: &fakeSecretsAPI{err: errors.New("AccessDenied")}}
	if _, err := p.Fetch(context.Background(), Reference{Path: "prod/db"}); err == nil {
		t.Error("expected error")
	}
}

func TestAWSProvider_BinaryAndMixedJSON(t *testing.T) {
	p := &awsProvider{client: &fakeSecretsAPI{out: &secretsmanager.GetSecretValueOutput{
		SecretBinary: []byte("raw-dsn"),
	}}}
	secret, err := p.Fetch(context.Background(), Reference{Path: "prod/sentry"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := secret.Value("value"); v != "raw-dsn" {
		t.Errorf("value = %q", v)
	}

	data := splitPayload(`{"host":"db","port":5432}`)
	if data["host"] != "db" || data["port"] != "5432" {
		t.Errorf("splitPayload = %v", data)
	}
}

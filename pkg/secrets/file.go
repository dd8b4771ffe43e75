package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileProvider reads secrets mounted as files, as Kubernetes and Docker
// do. A directory yields one entry per file.
type fileProvider struct {
	basePath string
}

func newFileProvider(base string) (provider, error) {
	if base == "" {
		base = "/var/run/secrets"
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("secrets: base %s not accessible: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets: base %s is not a directory", base)
	}
	return &fileProvider{basePath: base}, nil
}

func (f *fileProvider) Name() ProviderType {
	return ProviderFile
}

func (f *fileProvider) Fetch(_ context.Context, ref Reference) (Secret, error) {
	target := filepath.Join(f.basePath, filepath.Clean("/"+ref.Path))
	info, err := os.Stat(target)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: %s not found: %w", target, err)
	}

	data := make(map[string]string)
	if !info.IsDir() {
		content, err := os.ReadFile(target)
		if err != nil {
			return Secret{}, err
		}
		data[filepath.Base(target)] = strings.TrimSpace(string(content))
		return Secret{Data: data}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return Secret{}, err
	}
	for _, e := range entries {
		// Kubernetes projects ..data symlinks next to the keys
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(target, e.Name()))
		if err != nil {
			return Secret{}, err
		}
		data[e.Name()] = strings.TrimSpace(string(content))
	}
	return Secret{Data: data}, nil
}

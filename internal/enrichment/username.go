package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/richxcame/scamshield/pkg/httpclient"
	"github.com/richxcame/scamshield/pkg/ratelimit"
)

// UsernameChecker probes public profile pages. Platform templates contain
// one %s for the escaped handle, e.g. https://github.com/%s.
type UsernameChecker struct {
	client    *httpclient.Client
	cooldown  *ratelimit.Cooldown
	platforms []string
}

// NewUsernameChecker creates a checker over platform URL templates
func NewUsernameChecker(client *httpclient.Client, cooldown *ratelimit.Cooldown, platforms []string) *UsernameChecker {
	return &UsernameChecker{client: client, cooldown: cooldown, platforms: platforms}
}

// Tasks returns one lookup per platform
func (u *UsernameChecker) Tasks(username string) []Task {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	tasks := make([]Task, 0, len(u.platforms))
	for _, tmpl := range u.platforms {
		if !strings.Contains(tmpl, "%s") {
			continue
		}
		profileURL := fmt.Sprintf(tmpl, url.PathEscape(name))
		platform := platformName(profileURL)
		tasks = append(tasks, Task{
			Kind: KindUsernamePresence,
			Key:  platform + ":" + name,
			Run: func(ctx context.Context) (Payload, error) {
				return u.check(ctx, name, platform, profileURL)
			},
		})
	}
	return tasks
}

func (u *UsernameChecker) check(ctx context.Context, name, platform, profileURL string) (Payload, error) {
	if u.cooldown != nil {
		if err := u.cooldown.Wait(ctx, platform); err != nil {
			return nil, err
		}
	}

	presence := UsernamePresence{Username: name, Platform: platform}
	_, err := u.client.Get(ctx, profileURL, map[string]string{"Accept": "text/html"})
	switch status := httpclient.StatusCode(err); {
	case err == nil:
		presence.Exists = boolPtr(true)
	case status == http.StatusNotFound || status == http.StatusGone:
		presence.Exists = boolPtr(false)
	default:
		return nil, fmt.Errorf("probe %s: %w", platform, err)
	}
	return presence, nil
}

func platformName(profileURL string) string {
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" {
		return profileURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func boolPtr(b bool) *bool { return &b }

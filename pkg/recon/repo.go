package recon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
)

// KeyFiles are fetched from the repository root by Repo.
var KeyFiles = []string{
	"package.json",
	"requirements.txt",
	"Dockerfile",
	"docker-compose.yml",
	".env",
	"go.mod",
	"pom.xml",
	"composer.json",
	"Gemfile",
	".github/workflows/ci.yml",
	".github/workflows/main.yml",
	".github/workflows/build.yml",
	".github/workflows/deploy.yml",
	".github/workflows/release.yml",
}

// Repo maps a GitHub repository through raw file fetches. Other hosts yield
// an empty file set.
func (r *Recon) Repo(ctx context.Context, target string) (*engine.ReconData, error) {
	data := &engine.ReconData{
		Kind:   engine.ReconRepo,
		Target: target,
		Files:  map[string]string{},
	}
	owner, repo, ok := ParseGitHub(target)
	if !ok {
		data.Notes = append(data.Notes, "raw file mapping is only available for GitHub repositories")
		return data, nil
	}

	var (
		transportErrs []error
		attempted     int
	)
	for _, path := range KeyFiles {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		attempted++
		content, found, err := r.fetchRaw(ctx, owner, repo, path)
		if err != nil {
			transportErrs = append(transportErrs, err)
			continue
		}
		if !found {
			continue
		}
		data.Files[path] = content
		data.Secrets = append(data.Secrets, engine.MatchSecrets(path, content)...)
	}
	if attempted > 0 && len(transportErrs) == attempted {
		return nil, fmt.Errorf("fetch repository files: %w", errors.Join(transportErrs...))
	}
	logging.L().Debugw("repository recon complete", "target", target, "files", len(data.Files))
	return data, nil
}

func (r *Recon) fetchRaw(ctx context.Context, owner, repo, path string) (string, bool, error) {
	u := fmt.Sprintf("%s/%s/%s/HEAD/%s", r.rawBaseURL, owner, repo, path)
	resp, err := r.get(ctx, http.MethodGet, u)
	if err != nil {
		return "", false, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return "", false, nil
	}
	body, err := readLimited(resp.Body, maxRepoFileSize)
	if err != nil {
		return "", false, err
	}
	return string(body), true, nil
}

// ParseGitHub extracts owner and repository name from https, scheme-less
// and SSH GitHub locators.
func ParseGitHub(target string) (owner, repo string, ok bool) {
	t := strings.TrimSpace(target)
	switch {
	case strings.HasPrefix(t, "git@github.com:"):
		t = strings.TrimPrefix(t, "git@github.com:")
	default:
		t = strings.TrimPrefix(t, "https://")
		t = strings.TrimPrefix(t, "http://")
		t = strings.TrimPrefix(t, "www.")
		if !strings.HasPrefix(t, "github.com/") {
			return "", "", false
		}
		t = strings.TrimPrefix(t, "github.com/")
	}
	parts := strings.Split(strings.Trim(t, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

package recon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
)

// Web probes an HTTP endpoint with HEAD then GET and collects headers,
// cookies, script sources, HTML comments and leaked secrets. Open ports and
// nikto notes are added when those tools are enabled and installed.
func (r *Recon) Web(ctx context.Context, target string) (*engine.ReconData, error) {
	u := normalizeURL(target)
	data := &engine.ReconData{
		Kind:    engine.ReconWeb,
		Target:  u,
		Headers: map[string]string{},
	}

	headErr := r.head(ctx, u, data)
	getErr := r.body(ctx, u, data)
	if headErr != nil && getErr != nil {
		return nil, errors.Join(headErr, getErr)
	}
	if headErr != nil {
		data.Notes = append(data.Notes, "HEAD request failed: "+headErr.Error())
	}

	if r.exec != nil {
		host := hostname(u)
		if r.portScan && host != "" {
			r.scanPorts(ctx, host, data)
		}
		if r.nikto {
			r.runNikto(ctx, u, data)
		}
	}
	return data, nil
}

func (r *Recon) head(ctx context.Context, u string, data *engine.ReconData) error {
	resp, err := r.get(ctx, http.MethodHead, u)
	if err != nil {
		return fmt.Errorf("HEAD %s: %w", u, err)
	}
	resp.Body.Close()
	recordResponse(resp, data)
	return nil
}

func (r *Recon) body(ctx context.Context, u string, data *engine.ReconData) error {
	resp, err := r.get(ctx, http.MethodGet, u)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	recordResponse(resp, data)
	body, err := readLimited(resp.Body, maxBodySize)
	if err != nil {
		return err
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") || looksLikeHTML(body) {
		scripts, comments := parseHTML(body)
		data.Scripts = append(data.Scripts, scripts...)
		data.Comments = append(data.Comments, comments...)
	}
	data.Secrets = append(data.Secrets, engine.MatchSecrets(u, string(body))...)
	return nil
}

// recordResponse merges headers and cookies. The first response wins for
// status and banner.
func recordResponse(resp *http.Response, data *engine.ReconData) {
	if data.StatusCode == 0 {
		data.StatusCode = resp.StatusCode
	}
	for k, v := range resp.Header {
		if k == "Set-Cookie" {
			continue
		}
		if _, ok := data.Headers[k]; !ok {
			data.Headers[k] = strings.Join(v, ", ")
		}
	}
	if data.Server == "" {
		data.Server = firstNonEmpty(resp.Header.Get("Server"), resp.Header.Get("X-Powered-By"))
	}

	seen := make(map[string]bool, len(data.Cookies))
	for _, c := range data.Cookies {
		seen[c.Name] = true
	}
	for _, c := range resp.Cookies() {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		data.Cookies = append(data.Cookies, engine.CookieInfo{
			Name:     c.Name,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: sameSite(c.SameSite),
		})
	}
}

func sameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<html"))
}

// parseHTML returns external script sources and non-empty comments.
func parseHTML(body []byte) (scripts, comments []string) {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return scripts, comments
		case html.CommentToken:
			if c := strings.TrimSpace(string(z.Text())); c != "" {
				comments = append(comments, truncate(c, 300))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					scripts = append(scripts, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}

func hostname(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (r *Recon) scanPorts(ctx context.Context, host string, data *engine.ReconData) {
	if !r.exec.Probe(ctx, "nmap") {
		logging.L().Debugw("nmap not installed, skipping port scan")
		return
	}
	ports, err := r.runNmap(ctx, host)
	if err != nil {
		data.Notes = append(data.Notes, "port scan failed: "+err.Error())
		return
	}
	data.OpenPorts = append(data.OpenPorts, ports...)
}

func (r *Recon) runNikto(ctx context.Context, u string, data *engine.ReconData) {
	if !r.exec.Probe(ctx, "nikto") {
		logging.L().Debugw("nikto not installed, skipping web server scan")
		return
	}
	notes, err := r.niktoScan(ctx, u)
	if err != nil {
		data.Notes = append(data.Notes, "nikto scan failed: "+err.Error())
		return
	}
	data.ServerNote = append(data.ServerNote, notes...)
}

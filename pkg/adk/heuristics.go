package adk

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/user/sentinel-adk/pkg/analyzers"
	"github.com/user/sentinel-adk/pkg/engine"
)

// heuristicSet numbers findings as HEUR-n.
type heuristicSet struct {
	findings []engine.Finding
}

func (h *heuristicSet) add(f engine.Finding) {
	f.ID = fmt.Sprintf("HEUR-%d", len(h.findings))
	f.Source = "heuristics"
	h.findings = append(h.findings, f)
}

// Heuristics applies the deterministic rule set to recon data.
func Heuristics(data *engine.ReconData) []engine.Finding {
	if data == nil {
		return nil
	}
	h := &heuristicSet{}
	switch data.Kind {
	case engine.ReconRepo:
		repoHeuristics(h, data)
	default:
		webHeuristics(h, data)
	}
	return h.findings
}

type headerRule struct {
	header      string
	issue       string
	severity    engine.Severity
	httpsOnly   bool
	remediation string
}

var securityHeaders = []headerRule{
	{"Strict-Transport-Security", "Missing HSTS Header", engine.SeverityMedium, true,
		"Send Strict-Transport-Security with a max-age of at least one year."},
	{"Content-Security-Policy", "Missing Content-Security-Policy", engine.SeverityMedium, false,
		"Define a Content-Security-Policy that restricts script sources."},
	{"X-Frame-Options", "Missing Clickjacking Protection", engine.SeverityLow, false,
		"Send X-Frame-Options: DENY or a CSP frame-ancestors directive."},
	{"X-Content-Type-Options", "Missing X-Content-Type-Options", engine.SeverityLow, false,
		"Send X-Content-Type-Options: nosniff."},
}

var (
	versionPattern     = regexp.MustCompile(`\d+\.\d+`)
	oldJQuery          = regexp.MustCompile(`(?i)jquery[.-]?([12]\.\d+(?:\.\d+)?)`)
	sensitiveComment   = regexp.MustCompile(`(?i)\b(password|passwd|secret|api[_-]?key|token|admin|debug|todo|fixme|internal)\b`)
	riskyPorts         = map[string]string{"21": "FTP", "23": "Telnet", "445": "SMB", "3389": "RDP", "3306": "MySQL", "5432": "PostgreSQL", "6379": "Redis", "9200": "Elasticsearch", "11211": "Memcached", "27017": "MongoDB"}
	criticalSecretRule = map[string]bool{"aws-access-key": true, "private-key": true, "stripe-secret-key": true}
)

func webHeuristics(h *heuristicSet, data *engine.ReconData) {
	https := strings.HasPrefix(strings.ToLower(data.Target), "https://")
	headers := make(map[string]string, len(data.Headers))
	for k, v := range data.Headers {
		headers[strings.ToLower(k)] = v
	}

	if !https {
		h.add(engine.Finding{
			Category:    engine.CategoryCryptoFailures,
			Issue:       "Unencrypted HTTP Transport",
			Description: "The target is served over plain HTTP, exposing traffic to interception.",
			Severity:    engine.SeverityMedium,
			Evidence:    "URL: " + data.Target,
			Remediation: "Serve the site over HTTPS and redirect HTTP requests.",
		})
	}

	for _, r := range securityHeaders {
		if r.httpsOnly && !https {
			continue
		}
		if _, ok := headers[strings.ToLower(r.header)]; ok {
			continue
		}
		if r.header == "X-Frame-Options" && strings.Contains(strings.ToLower(headers["content-security-policy"]), "frame-ancestors") {
			continue
		}
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       r.issue,
			Description: fmt.Sprintf("The response does not set the %s header.", r.header),
			Severity:    r.severity,
			Evidence:    fmt.Sprintf("Header: %s\nStatus: %d", r.header, data.StatusCode),
			Remediation: r.remediation,
		})
	}

	if server := headers["server"]; server != "" && versionPattern.MatchString(server) {
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       "Server Version Disclosure",
			Description: "The Server header reveals software and version, which helps attackers pick exploits.",
			Severity:    engine.SeverityLow,
			Evidence:    "Header: Server: " + server,
			Remediation: "Suppress or genericize the Server header.",
		})
	}
	if powered := headers["x-powered-by"]; powered != "" {
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       "Technology Disclosure via X-Powered-By",
			Description: "The X-Powered-By header reveals the application stack.",
			Severity:    engine.SeverityLow,
			Evidence:    "Header: X-Powered-By: " + powered,
			Remediation: "Remove the X-Powered-By header.",
		})
	}

	for _, c := range data.Cookies {
		var missing []string
		if https && !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HTTPOnly {
			missing = append(missing, "HttpOnly")
		}
		if c.SameSite == "" || strings.EqualFold(c.SameSite, "None") && !c.Secure {
			missing = append(missing, "SameSite")
		}
		if len(missing) == 0 {
			continue
		}
		h.add(engine.Finding{
			Category:    engine.CategoryAuthFailures,
			Issue:       "Insecure Cookie: " + c.Name,
			Description: fmt.Sprintf("Cookie %q is set without %s.", c.Name, strings.Join(missing, ", ")),
			Severity:    engine.SeverityMedium,
			Evidence:    fmt.Sprintf("Cookie: %s\nMissing: %s", c.Name, strings.Join(missing, ", ")),
			Remediation: "Set Secure, HttpOnly and SameSite=Lax or Strict on session cookies.",
		})
	}

	for _, s := range data.Secrets {
		h.add(secretFinding(s, "Exposed Secret in Page Source"))
	}

	for _, src := range data.Scripts {
		if m := oldJQuery.FindStringSubmatch(src); m != nil {
			h.add(engine.Finding{
				Category:    engine.CategoryVulnerableComponents,
				Issue:       "Outdated jQuery " + m[1],
				Description: "jQuery versions before 3.5 have known XSS vulnerabilities.",
				Severity:    engine.SeverityMedium,
				Evidence:    "Script: " + src,
				Remediation: "Upgrade jQuery to 3.5 or later.",
			})
		}
	}

	for _, c := range data.Comments {
		if sensitiveComment.MatchString(c) {
			h.add(engine.Finding{
				Category:    engine.CategoryMisconfiguration,
				Issue:       "Sensitive HTML Comment",
				Description: "An HTML comment shipped to clients mentions internal details.",
				Severity:    engine.SeverityLow,
				Evidence:    "Comment: " + c,
				Remediation: "Strip developer comments from production markup.",
			})
			break
		}
	}

	for _, p := range data.OpenPorts {
		if svc, ok := riskyPorts[p.Port]; ok {
			h.add(engine.Finding{
				Category:    engine.CategoryMisconfiguration,
				Issue:       fmt.Sprintf("Exposed %s Service", svc),
				Description: fmt.Sprintf("Port %s/%s (%s) is reachable from the scanning host.", p.Port, p.Protocol, svc),
				Severity:    engine.SeverityHigh,
				Evidence:    fmt.Sprintf("Host: %s\nPort: %s/%s\nService: %s", p.Host, p.Port, p.Protocol, p.Service),
				Remediation: fmt.Sprintf("Restrict access to port %s with firewall rules.", p.Port),
			})
		}
	}

	for _, note := range data.ServerNote {
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       "Web Server Finding: " + truncateRunes(note, 80),
			Description: note,
			Severity:    engine.SeverityMedium,
			Evidence:    "Nikto: " + note,
			Remediation: "Review the web server configuration for the reported item.",
		})
	}
}

func secretFinding(s engine.SecretMatch, issue string) engine.Finding {
	sev := engine.SeverityHigh
	if criticalSecretRule[s.Rule] {
		sev = engine.SeverityCritical
	}
	return engine.Finding{
		Category:    engine.CategoryAuthFailures,
		Issue:       fmt.Sprintf("%s: %s", issue, s.Rule),
		Description: "A credential-like value is exposed and should be considered compromised.",
		Severity:    sev,
		Evidence:    fmt.Sprintf("Location: %s\nMatch: %s", s.Location, s.Redacted),
		Remediation: "Revoke and rotate the credential, then move it to a secret manager.",
	}
}

var (
	dockerUser     = regexp.MustCompile(`(?im)^\s*USER\s+(\S+)`)
	dockerFrom     = regexp.MustCompile(`(?im)^\s*FROM\s+(\S+)`)
	prTarget       = regexp.MustCompile(`(?m)^[ \t]*pull_request_target[ \t]*:|^on:[ \t]*\[?[^\n]*\bpull_request_target\b`)
	privilegedMode = regexp.MustCompile(`(?m)^\s*privileged:\s*true`)
	unpinnedPyLine = regexp.MustCompile(`^[A-Za-z0-9_.\-\[\]]+\s*$`)
)

const workflowDir = ".github/workflows/"

func repoHeuristics(h *heuristicSet, data *engine.ReconData) {
	paths := make([]string, 0, len(data.Files))
	for p := range data.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if _, ok := data.Files[".env"]; ok {
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       "Committed Environment File",
			Description: "A .env file is tracked in the repository and typically holds credentials.",
			Severity:    engine.SeverityHigh,
			Evidence:    analyzers.Evidence(".env", 0),
			Remediation: "Remove .env from version control, add it to .gitignore and rotate its secrets.",
		})
	}

	if df, ok := data.Files["Dockerfile"]; ok {
		users := dockerUser.FindAllStringSubmatch(df, -1)
		if len(users) == 0 || users[len(users)-1][1] == "root" || users[len(users)-1][1] == "0" {
			h.add(engine.Finding{
				Category:    engine.CategoryMisconfiguration,
				Issue:       "Container Runs as Root",
				Description: "The Dockerfile never switches to an unprivileged user.",
				Severity:    engine.SeverityMedium,
				Evidence:    analyzers.Evidence("Dockerfile", 0),
				Remediation: "Add a USER instruction with a non-root user.",
			})
		}
		for _, m := range dockerFrom.FindAllStringSubmatch(df, -1) {
			image := m[1]
			if strings.EqualFold(image, "scratch") || strings.Contains(image, "@sha256:") {
				continue
			}
			last := image[strings.LastIndex(image, "/")+1:]
			if !strings.Contains(last, ":") || strings.HasSuffix(last, ":latest") {
				h.add(engine.Finding{
					Category:    engine.CategorySoftwareIntegrity,
					Issue:       "Unpinned Base Image",
					Description: "The base image floats with upstream changes.",
					Severity:    engine.SeverityLow,
					Evidence:    analyzers.Evidence("Dockerfile", lineOf(df, m[0]), "Image", image),
					Remediation: "Pin the base image to a version tag or digest.",
				})
				break
			}
		}
	}

	if pkg, ok := data.Files["package.json"]; ok {
		if loose := looseNpmVersions(pkg); len(loose) > 0 {
			h.add(engine.Finding{
				Category:    engine.CategoryVulnerableComponents,
				Issue:       "Unpinned Dependency Versions",
				Description: "Dependencies accept any version, so builds can pull compromised releases.",
				Severity:    engine.SeverityMedium,
				Evidence:    analyzers.Evidence("package.json", 0, "Packages", strings.Join(loose, ", ")),
				Remediation: "Pin versions and commit a lockfile.",
			})
		}
	}

	if req, ok := data.Files["requirements.txt"]; ok {
		var loose []string
		for _, line := range strings.Split(req, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
				continue
			}
			if unpinnedPyLine.MatchString(line) {
				loose = append(loose, line)
			}
		}
		if len(loose) > 0 {
			h.add(engine.Finding{
				Category:    engine.CategoryVulnerableComponents,
				Issue:       "Unpinned Python Requirements",
				Description: "Requirements without version specifiers install whatever is latest.",
				Severity:    engine.SeverityLow,
				Evidence:    analyzers.Evidence("requirements.txt", 0, "Packages", strings.Join(loose, ", ")),
				Remediation: "Pin requirements with == and hashes.",
			})
		}
	}

	if dc, ok := data.Files["docker-compose.yml"]; ok && privilegedMode.MatchString(dc) {
		h.add(engine.Finding{
			Category:    engine.CategoryMisconfiguration,
			Issue:       "Privileged Container in Compose File",
			Description: "A service runs with privileged: true and full host device access.",
			Severity:    engine.SeverityHigh,
			Evidence:    analyzers.Evidence("docker-compose.yml", lineOf(dc, "privileged:")),
			Remediation: "Drop privileged mode and grant only the capabilities required.",
		})
	}

	for _, p := range paths {
		if !strings.HasPrefix(p, workflowDir) {
			continue
		}
		if loc := prTarget.FindStringIndex(data.Files[p]); loc != nil {
			h.add(engine.Finding{
				Category:    engine.CategorySoftwareIntegrity,
				Issue:       "Workflow Triggered by pull_request_target",
				Description: "pull_request_target runs with repository secrets and write tokens on untrusted fork code.",
				Severity:    engine.SeverityHigh,
				Evidence:    analyzers.Evidence(p, strings.Count(data.Files[p][:loc[0]], "\n")+1),
				Remediation: "Use pull_request, or never check out the PR head in privileged workflows.",
			})
		}
	}

	for _, s := range data.Secrets {
		h.add(secretFinding(s, "Hardcoded Secret in Repository"))
	}
}

// looseNpmVersions lists dependencies pinned to "*", "latest" or "x".
func looseNpmVersions(pkg string) []string {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(pkg), &manifest); err != nil {
		return nil
	}
	var out []string
	for _, deps := range []map[string]string{manifest.Dependencies, manifest.DevDependencies} {
		for name, v := range deps {
			switch strings.TrimSpace(strings.ToLower(v)) {
			case "*", "latest", "x", "":
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func lineOf(content, needle string) int {
	i := strings.Index(content, needle)
	if i < 0 {
		return 0
	}
	return strings.Count(content[:i], "\n") + 1
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

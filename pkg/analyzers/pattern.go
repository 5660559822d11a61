package analyzers

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

const (
	patternMaxFileSize = 1 << 20
	patternMaxFiles    = 5000
)

// patternRule is one line-oriented regex check of the bundled scanner.
type patternRule struct {
	ID          string
	Issue       string
	Description string
	Severity    string
	Targets     []string // file extensions; empty means all text sources
	Pattern     *regexp.Regexp
	Remediation string
}

var patternRules = []patternRule{
	{
		ID: "js-eval", Issue: "Use of eval()", Severity: "HIGH",
		Description: "eval executes arbitrary strings as code.",
		Targets:     []string{".js", ".ts", ".jsx", ".tsx", ".mjs", ".py", ".php", ".rb"},
		Pattern:     regexp.MustCompile(`\beval\s*\(`),
		Remediation: "Parse data with a dedicated parser instead of evaluating it.",
	},
	{
		ID: "shell-exec", Issue: "Shell command built at runtime", Severity: "HIGH",
		Description: "Process execution through a shell with interpolated input allows command injection.",
		Pattern:     regexp.MustCompile(`(child_process\.exec\s*\(|os\.system\s*\(|subprocess\.\w+\(.*shell\s*=\s*True|shell_exec\s*\(|Runtime\.getRuntime\(\)\.exec\s*\()`),
		Remediation: "Pass arguments as a list to an exec API that does not invoke a shell.",
	},
	{
		ID: "sql-concat", Issue: "SQL query built by string concatenation", Severity: "HIGH",
		Description: "Concatenating input into SQL enables injection.",
		Pattern:     regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b[^;\n]*\b(from|into|set|where)\b[^;\n]*["']\s*(\+|\.\s*\$|%\s*\(|\+\s*\w)`),
		Remediation: "Use parameterized queries.",
	},
	{
		ID: "inner-html", Issue: "Direct innerHTML assignment", Severity: "MEDIUM",
		Description: "Assigning untrusted data to innerHTML enables XSS.",
		Targets:     []string{".js", ".ts", ".jsx", ".tsx", ".mjs", ".html"},
		Pattern:     regexp.MustCompile(`\.innerHTML\s*=|dangerouslySetInnerHTML`),
		Remediation: "Use textContent or a sanitizer.",
	},
	{
		ID: "weak-hash", Issue: "Weak hash algorithm", Severity: "MEDIUM",
		Description: "MD5 and SHA-1 are unsuitable for security purposes.",
		Pattern:     regexp.MustCompile(`(?i)\b(md5|sha1)\s*\(|createHash\(\s*["'](md5|sha1)["']|hashlib\.(md5|sha1)\b|crypto/(md5|sha1)"`),
		Remediation: "Use SHA-256 or better, and a password hash for credentials.",
	},
	{
		ID: "tls-verify-off", Issue: "TLS certificate verification disabled", Severity: "HIGH",
		Description: "Disabling certificate checks allows man-in-the-middle attacks.",
		Pattern:     regexp.MustCompile(`InsecureSkipVerify:\s*true|verify\s*=\s*False|rejectUnauthorized:\s*false|NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*["']?0`),
		Remediation: "Keep certificate verification enabled and trust the proper CA.",
	},
	{
		ID: "unsafe-deserialize", Issue: "Unsafe deserialization", Severity: "HIGH",
		Description: "Deserializing untrusted data can execute code.",
		Pattern:     regexp.MustCompile(`pickle\.loads?\s*\(|yaml\.load\s*\((?:[^)]*Loader\s*=\s*yaml\.(?:Unsafe)?Loader)?[^)]*\)|\bunserialize\s*\(|ObjectInputStream\s*\(`),
		Remediation: "Use a data-only format or a safe loader.",
	},
	{
		ID: "debug-enabled", Issue: "Debug mode enabled", Severity: "LOW",
		Description: "Debug mode leaks stack traces and internals.",
		Pattern:     regexp.MustCompile(`\bDEBUG\s*=\s*True\b|app\.run\([^)]*debug\s*=\s*True`),
		Remediation: "Disable debug mode outside development.",
	},
	{
		ID: "cors-wildcard", Issue: "Permissive CORS policy", Severity: "MEDIUM",
		Description: "A wildcard origin lets any site read responses.",
		Pattern:     regexp.MustCompile(`Access-Control-Allow-Origin["']?\s*[,:]\s*["']\*["']|cors\(\s*\)`),
		Remediation: "Restrict allowed origins to known hosts.",
	},
}

var patternSeverity = SeverityTable{
	"CRITICAL": engine.SeverityCritical,
	"HIGH":     engine.SeverityHigh,
	"MEDIUM":   engine.SeverityMedium,
	"LOW":      engine.SeverityLow,
}

var patternCategories = CategoryTable{
	Prefixes: []CategoryRule{
		{"SECRET", engine.CategoryAuthFailures},
		{"JS-EVAL", engine.CategoryInjection},
		{"SHELL-EXEC", engine.CategoryInjection},
		{"SQL-CONCAT", engine.CategoryInjection},
		{"INNER-HTML", engine.CategoryInjection},
		{"WEAK-HASH", engine.CategoryCryptoFailures},
		{"TLS-VERIFY-OFF", engine.CategoryCryptoFailures},
		{"UNSAFE-DESERIALIZE", engine.CategorySoftwareIntegrity},
		{"DEBUG-ENABLED", engine.CategoryMisconfiguration},
		{"CORS-WILDCARD", engine.CategoryMisconfiguration},
	},
}

var sourceExtensions = map[string]bool{
	".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".mjs": true, ".cjs": true,
	".py": true, ".go": true, ".java": true, ".kt": true, ".php": true, ".rb": true,
	".cs": true, ".html": true, ".yml": true, ".yaml": true, ".json": true, ".env": true,
	".sh": true, ".tf": true, ".properties": true, ".xml": true, ".toml": true, ".ini": true,
}

func newPattern() *Tool {
	return &Tool{
		ToolName:        "pattern",
		IDPrefix:        "PATTERN",
		AlwaysAvailable: true,
		InProcess:       scanPatterns,
		Severity:        patternSeverity,
		Categories:      patternCategories,
	}
}

func scanPatterns(ctx context.Context, cfg Config, c *Collector) error {
	files := 0
	return filepath.WalkDir(cfg.TargetPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != cfg.TargetPath && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.Full() || files >= patternMaxFiles {
			return filepath.SkipAll
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.Name() == ".env" || strings.HasPrefix(d.Name(), ".env.") {
			ext = ".env"
		}
		if !sourceExtensions[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > patternMaxFileSize {
			return nil
		}
		files++
		rel, err := filepath.Rel(cfg.TargetPath, path)
		if err != nil {
			rel = path
		}
		scanPatternFile(path, filepath.ToSlash(rel), ext, c)
		return nil
	})
}

func scanPatternFile(path, rel, ext string, c *Collector) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), patternMaxFileSize)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		for _, rule := range patternRules {
			if !ruleTargets(rule, ext) || !rule.Pattern.MatchString(text) {
				continue
			}
			if !c.Add(engine.Finding{
				Category:    c.Category(rule.ID),
				Issue:       rule.Issue,
				Description: rule.Description,
				Severity:    c.Severity(rule.Severity),
				Evidence:    Evidence(rel, line, "Rule", rule.ID, "Code", truncate(strings.TrimSpace(text), 160)),
				Remediation: rule.Remediation,
			}) {
				return
			}
		}
		for _, rule := range engine.SecretRules {
			if m := rule.Pattern.FindString(text); m != "" {
				sev := "HIGH"
				if rule.Name == "private-key" || rule.Name == "aws-access-key" {
					sev = "CRITICAL"
				}
				if !c.Add(engine.Finding{
					Category:    c.Category("SECRET"),
					Issue:       "Hardcoded Secret: " + rule.Name,
					Description: "A credential-like value is committed in source.",
					Severity:    c.Severity(sev),
					Evidence:    Evidence(rel, line, "Rule", rule.Name, "Match", engine.Redact(m)),
					Remediation: "Move the secret to the environment or a secret manager and rotate it.",
				}) {
					return
				}
			}
		}
	}
}

func ruleTargets(rule patternRule, ext string) bool {
	if len(rule.Targets) == 0 {
		return true
	}
	for _, t := range rule.Targets {
		if t == ext {
			return true
		}
	}
	return false
}

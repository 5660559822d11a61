package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type TargetKind int

const (
	TargetNetwork TargetKind = iota
	TargetRepository
)

func (k TargetKind) String() string {
	if k == TargetRepository {
		return "repository"
	}
	return "network"
}

var repoHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// Classify tells repositories apart from network endpoints by looking at the
// locator only.
func Classify(target string) TargetKind {
	t := strings.TrimSpace(target)
	if strings.HasPrefix(t, "git@") || strings.HasSuffix(strings.TrimSuffix(t, "/"), ".git") {
		return TargetRepository
	}
	host := hostOf(t)
	for _, h := range repoHosts {
		if host == h || host == "www."+h {
			return TargetRepository
		}
	}
	return TargetNetwork
}

// hostOf returns the lower-cased host of a locator, with or without scheme.
func hostOf(target string) string {
	raw := target
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Mode selects which branches run.
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
	ModeFull    Mode = "full"
)

// ParseMode accepts the three mode names case-insensitively. Empty means full.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFull, nil
	case ModeStatic, ModeDynamic, ModeFull:
		return m, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q (want static, dynamic or full)", s)
	}
}

func (m Mode) Dynamic() bool { return m == ModeDynamic || m == ModeFull }
func (m Mode) Static() bool  { return m == ModeStatic || m == ModeFull }

var titleCaser = cases.Title(language.English)

// Label is the display form used in scan logs.
func (m Mode) Label() string {
	return titleCaser.String(string(m))
}

package recon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/runner"
)

const niktoTimeout = 5 * time.Minute

type niktoReport struct {
	Vulnerabilities []niktoVulnerability `json:"vulnerabilities"`
}

type niktoVulnerability struct {
	ID     string `json:"id"`
	Msg    string `json:"msg"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// niktoScan tries the JSON report first and falls back to parsing text
// output, since many nikto installs lack the Perl JSON module.
func (r *Recon) niktoScan(ctx context.Context, target string) ([]string, error) {
	notes, err := r.niktoJSON(ctx, target)
	if err == nil && len(notes) > 0 {
		return notes, nil
	}
	logging.L().Debugw("nikto JSON report unavailable, falling back to text", "error", err)

	res := r.exec.Run(ctx, runner.Task{
		ToolName: "nikto",
		Command:  "nikto",
		Args:     []string{"-h", target, "-nointeractive"},
		Timeout:  niktoTimeout,
	})
	if !res.Success && res.RawOutput == "" {
		return nil, fmt.Errorf("nikto: %s", res.ErrorText)
	}
	return parseNiktoText(res.RawOutput), nil
}

func (r *Recon) niktoJSON(ctx context.Context, target string) ([]string, error) {
	f, err := os.CreateTemp("", "nikto-report-*.json")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	res := r.exec.Run(ctx, runner.Task{
		ToolName: "nikto",
		Command:  "nikto",
		Args:     []string{"-h", target, "-nointeractive", "-o", path, "-Format", "json"},
		Timeout:  niktoTimeout,
	})
	out := res.RawOutput + res.ErrorText
	if strings.Contains(out, `Can't locate object method "new" via package "JSON"`) ||
		strings.Contains(out, "Can't locate JSON.pm") {
		return nil, fmt.Errorf("missing Perl JSON module")
	}
	if !res.Success {
		return nil, fmt.Errorf("nikto: %s", res.ErrorText)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseNiktoJSON(data)
}

func parseNiktoJSON(data []byte) ([]string, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty report file")
	}
	var report niktoReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	var notes []string
	for _, v := range report.Vulnerabilities {
		msg := strings.TrimSpace(v.Msg)
		if msg == "" {
			continue
		}
		if v.URL != "" {
			msg = v.URL + ": " + msg
		}
		notes = append(notes, msg)
	}
	return notes, nil
}

// parseNiktoText keeps "+ " lines, minus the scan header lines.
func parseNiktoText(output string) []string {
	var notes []string
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "+ ") {
			continue
		}
		msg := strings.TrimPrefix(line, "+ ")
		if strings.HasPrefix(msg, "Target") || strings.HasPrefix(msg, "Start Time") ||
			strings.HasPrefix(msg, "End Time") || strings.HasPrefix(msg, "1 host(s) tested") {
			continue
		}
		notes = append(notes, msg)
	}
	return notes
}

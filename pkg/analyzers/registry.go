package analyzers

import "strings"

// Default returns every adapter in invocation order. Merge order, and with
// it deduplication precedence, follows this order.
func Default(exec Executor) []Analyzer {
	return []Analyzer{
		newSemgrep(exec),
		newPattern(),
		newNpmAudit(exec),
		newRetire(exec),
		newNjsscan(exec),
		newBandit(exec),
		newPipAudit(exec),
		newGosec(exec),
		newJavaSAST(exec),
		newPHPStan(exec),
		newBrakeman(exec),
		newGitleaks(exec),
		newTrivy(exec),
	}
}

// Names lists the adapter names of the default registry.
func Names() []string {
	all := Default(nil)
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name()
	}
	return names
}

// Select keeps the analyzers named in enabled, preserving registry order.
// An empty enabled list keeps everything.
func Select(all []Analyzer, enabled []string) []Analyzer {
	if len(enabled) == 0 {
		return all
	}
	want := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []Analyzer
	for _, a := range all {
		if want[strings.ToLower(a.Name())] {
			out = append(out, a)
		}
	}
	return out
}

package engine

// DedupKey identifies findings that describe the same issue.
type DedupKey struct {
	Issue    string
	Category Category
}

// Key returns the deduplication key of f.
func (f Finding) Key() DedupKey {
	return DedupKey{Issue: f.Issue, Category: f.Category}
}

// Deduplicate drops later findings that share an (Issue, Category) pair with
// an earlier one. Input order decides which instance survives.
func Deduplicate(findings []Finding) []Finding {
	seen := make(map[DedupKey]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := f.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

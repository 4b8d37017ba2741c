package keywords

import "strings"

// Group is a named set of synonymous search terms sent to the trend API as one series.
type Group struct {
	Name     string   `json:"groupName"`
	Keywords []string `json:"keywords"`
}

// Parse reads one group per line in the form "name: kw1, kw2".
//
// Parsing is best-effort: blank lines, lines without a colon, lines with an
// empty name and lines whose keyword list is empty after trimming are skipped
// without an error. Groups are returned in input order.
func Parse(text string) []Group {
	var groups []Group
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		var kws []string
		for _, k := range strings.Split(rest, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kws = append(kws, k)
			}
		}
		if name == "" || len(kws) == 0 {
			continue
		}
		groups = append(groups, Group{Name: name, Keywords: kws})
	}
	return groups
}

// Format renders groups back into the text form accepted by Parse.
func Format(groups []Group) string {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, g.Name+": "+strings.Join(g.Keywords, ", "))
	}
	return strings.Join(lines, "\n")
}

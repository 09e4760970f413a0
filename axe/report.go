package axe

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxSnippet bounds the HTML shown per node in Report.
const maxSnippet = 200

// Report renders violations as failure-message text. The output depends
// only on the input.
func Report(violations []Violation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d accessibility violations:", len(violations))

	for i, v := range violations {
		impact := string(v.Impact)
		if impact == "" {
			impact = "unknown"
		}
		fmt.Fprintf(&sb, "\n%d) %s [%s]", i+1, v.ID, impact)
		if v.Help != "" {
			fmt.Fprintf(&sb, ": %s", v.Help)
		}
		if v.HelpURL != "" {
			fmt.Fprintf(&sb, "\n   %s", v.HelpURL)
		}

		for j, n := range v.Nodes {
			fmt.Fprintf(&sb, "\n  %d.%d) %s", i+1, j+1, FlattenTarget(n.Target))
			if snip := openingTag(n.HTML); snip != "" {
				fmt.Fprintf(&sb, "\n       %s", snip)
			}
			for _, line := range strings.Split(strings.TrimSpace(n.FailureSummary), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					fmt.Fprintf(&sb, "\n       %s", line)
				}
			}
		}
	}
	return sb.String()
}

// FlattenTarget joins the selectors of a node target. Steps of a shadow
// chain are joined with " >>> ", alternative selectors with ", ".
func FlattenTarget(target []Selector) string {
	parts := make([]string, 0, len(target))
	for _, s := range target {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

// openingTag returns the first start tag of an engine HTML snippet, which
// identifies the node without its subtree.
func openingTag(snippet string) string {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// No tag at all, e.g. a text node.
			return truncate(snippet)
		case html.StartTagToken, html.SelfClosingTagToken:
			return truncate(z.Token().String())
		}
	}
}

func truncate(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "..."
}

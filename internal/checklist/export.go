package checklist

import (
	"fmt"
	"strings"
)

// ExportMarkdown renders a checklist as a markdown task list ready to paste
// into an incident channel or post-mortem doc.
func ExportMarkdown(cl Checklist) string {
	var b strings.Builder

	title := cl.Query
	if title == "" {
		title = "Incident checklist"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if cl.Severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n\n", cl.Severity)
	}

	if len(cl.Items) == 0 {
		b.WriteString("_No matching guidance found._\n")
		return b.String()
	}

	for _, item := range cl.Items {
		fmt.Fprintf(&b, "- [ ] %s\n", item.Text)
		if item.Command != "" {
			fmt.Fprintf(&b, "  - Command: `%s`\n", item.Command)
		}
		if item.Verify != "" {
			fmt.Fprintf(&b, "  - Verify: %s\n", item.Verify)
		}
		if item.Rollback != "" {
			fmt.Fprintf(&b, "  - Rollback: %s\n", item.Rollback)
		}
		for _, ref := range item.References {
			if src, ok := cl.Sources[ref]; ok {
				loc := src.Location
				if loc != "" {
					loc = ", " + loc
				}
				fmt.Fprintf(&b, "  - Source: %s%s\n", src.DocumentName, loc)
			}
		}
	}

	if len(cl.Sources) > 0 {
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Generated from %d source chunk(s).\n", len(cl.Sources))
	}
	return b.String()
}

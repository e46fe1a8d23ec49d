package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"asset-forge/internal/domain"
)

var categoryLabels = map[domain.Category]string{
	domain.CategoryHolders: "Holders",
	domain.CategoryRisk:    "Risk",
	domain.CategoryProfile: "Profile",
}

// intelPayload folds the resolved aggregate into the user message.
func intelPayload(subject domain.Subject, agg *domain.Aggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract: %s\nNetwork: %s\n\n", subject.Address, subject.Network)
	for _, cat := range domain.Categories {
		res := agg.Category(cat)
		fmt.Fprintf(&b, "## %s\n", categoryLabels[cat])
		if !res.Resolved {
			b.WriteString("data unavailable\n\n")
			continue
		}
		var pretty json.RawMessage = res.Data
		if out, err := json.MarshalIndent(res.Data, "", "  "); err == nil {
			pretty = out
		}
		fmt.Fprintf(&b, "source: %s\n%s\n\n", res.Source, pretty)
	}
	return b.String()
}

// dataSourcesSection is appended to every contract-intel document so the
// availability of each category is stated regardless of generated text.
func dataSourcesSection(agg *domain.Aggregate) string {
	var b strings.Builder
	b.WriteString("# Data Sources\n\n")
	for _, cat := range domain.Categories {
		res := agg.Category(cat)
		if res.Resolved {
			fmt.Fprintf(&b, "%s: %s\n", categoryLabels[cat], res.Source)
		} else {
			fmt.Fprintf(&b, "%s: data unavailable\n", categoryLabels[cat])
		}
	}
	if agg.PreviousHash != "" && !agg.Changed {
		b.WriteString("\nNo change since last report.")
	}
	return strings.TrimRight(b.String(), "\n")
}

package generation

import (
	"fmt"
	"strings"

	"asset-forge/internal/domain"
)

// Template is the kind-specific part of the execution contract.
type Template struct {
	Kind     domain.JobKind
	Title    string
	Subtitle string
	Prefix   string // filename prefix
	System   string
}

const sharedStyle = `Write in plain markdown. Use "#" headings for sections and short paragraphs separated by blank lines. ` +
	`Do not use horizontal rules, tables or emphasis markers. Scores are written as "(N/10)".`

var templates = map[domain.JobKind]Template{
	domain.KindPromptOptimize: {
		Kind:     domain.KindPromptOptimize,
		Title:    "Prompt Optimization Report",
		Subtitle: "Refined prompt, rationale and scoring",
		Prefix:   "prompt_optimizer",
		System: "You are a prompt engineer. Rewrite the user's prompt so it is specific, unambiguous and testable. " +
			"Return sections: Summary, Optimized Prompt, Changes, Scores (clarity, specificity, robustness). " + sharedStyle,
	},
	domain.KindCodeExplain: {
		Kind:     domain.KindCodeExplain,
		Title:    "Code Explanation",
		Subtitle: "Structure, behavior and risks",
		Prefix:   "code_explainer",
		System: "You are a senior engineer explaining code to a reviewer. " +
			"Return sections: Overview, Walkthrough, Risks, Suggested Improvements, Scores (readability, safety). " + sharedStyle,
	},
	domain.KindPromptTest: {
		Kind:     domain.KindPromptTest,
		Title:    "Prompt Test Simulation",
		Subtitle: "Persona responses and failure modes",
		Prefix:   "prompt_tester",
		System: "You simulate three distinct user personas exercising the given prompt. " +
			"For each persona report the likely response, failure modes and a robustness score. End with Recommendations. " + sharedStyle,
	},
	domain.KindContractIntel: {
		Kind:     domain.KindContractIntel,
		Title:    "Contract Intelligence Report",
		Subtitle: "Holders, risk and project profile",
		Prefix:   "contract_intel",
		System: "You are an on-chain analyst. Using only the supplied data, assess the contract. " +
			"Return sections: Summary, Holders, Risk, Project Profile, Scores (distribution, risk, transparency). " +
			"When a category is marked unavailable, say so in its section and do not invent figures. " + sharedStyle,
	},
}

// TemplateFor returns the template for kind.
func TemplateFor(kind domain.JobKind) (Template, error) {
	t, ok := templates[kind]
	if !ok {
		return Template{}, domain.ErrValidation("unknown component %q", kind)
	}
	return t, nil
}

// userPayload builds the user message for non-intel kinds.
func userPayload(job *domain.Job) string {
	var b strings.Builder
	switch job.Kind {
	case domain.KindCodeExplain:
		if job.Input.Chain != "" {
			fmt.Fprintf(&b, "Target chain: %s\n\n", job.Input.Chain)
		}
		b.WriteString("Code:\n")
		b.WriteString(job.Input.Text)
	default:
		b.WriteString(job.Input.Text)
	}
	return b.String()
}

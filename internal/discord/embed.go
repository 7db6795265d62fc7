package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"opscord.app/pipeline/internal/model"
)

// Embed colors follow Discord's integer color encoding.
const (
	colorPR      = 0x6366f1
	colorIssue   = 0xf97316
	colorSummary = 0x10b981
	colorPush    = 0x0366d6
)

const footerText = "OpsCord | AI-Powered DevOps"

const maxDescriptionLen = 4000

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	URL         string       `json:"url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// PRSummaryEmbed renders an AI pull request summary for channel delivery.
func PRSummaryEmbed(prNumber int64, title, author string, summary *model.PRSummary) Embed {
	var b strings.Builder
	b.WriteString(summary.Summary)
	if len(summary.KeyChanges) > 0 {
		b.WriteString("\n\n**Key Changes**\n")
		writeBullets(&b, summary.KeyChanges)
	}
	if len(summary.Risks) > 0 {
		b.WriteString("\n**Risks**\n")
		writeBullets(&b, summary.Risks)
	}
	if len(summary.Recommendations) > 0 {
		b.WriteString("\n**Recommendations**\n")
		writeBullets(&b, summary.Recommendations)
	}

	return Embed{
		Title:       fmt.Sprintf("PR #%d: %s", prNumber, title),
		Description: truncate(b.String(), maxDescriptionLen),
		Color:       colorSummary,
		Fields: []EmbedField{
			{Name: "Author", Value: orUnknown(author), Inline: true},
			{Name: "Complexity", Value: string(summary.Complexity), Inline: true},
		},
		Footer: &EmbedFooter{Text: footerText},
	}
}

// IssueTriageEmbed renders an AI issue categorization.
func IssueTriageEmbed(issueNumber int64, title, author string, triage *model.IssueTriage) Embed {
	return Embed{
		Title:       fmt.Sprintf("Issue #%d: %s", issueNumber, title),
		Description: fmt.Sprintf("Categorized as **%s**", triage.Category),
		Color:       colorIssue,
		Fields: []EmbedField{
			{Name: "Author", Value: orUnknown(author), Inline: true},
			{Name: "Severity", Value: string(triage.Severity), Inline: true},
		},
		Footer: &EmbedFooter{Text: footerText},
	}
}

// PushEmbed announces processed push activity on a branch.
func PushEmbed(repoFullName, branch string, commitCount int) Embed {
	noun := "commits"
	if commitCount == 1 {
		noun = "commit"
	}
	return Embed{
		Title:       fmt.Sprintf("Push to %s", repoFullName),
		Description: fmt.Sprintf("%d %s pushed to `%s`", commitCount, noun, branch),
		Color:       colorPush,
		Footer:      &EmbedFooter{Text: footerText},
	}
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

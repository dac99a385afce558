// Package citations builds source attributions for follow-up answers.
package citations

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"followup-orchestrator/internal/models"
)

const orangeBookURL = "https://www.fda.gov/drugs/drug-approvals-and-databases/approved-drug-products-therapeutic-equivalence-evaluations-orange-book"

// Markdown links in web-search answers, [text](url).
var linkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// Trailing source blocks the model appends on its own. Citations are
// rendered separately, so these would duplicate.
var sourcesBlockRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\n\n---\n\n\*\*Sources?:\*\*[\s\S]*$`),
	regexp.MustCompile(`(?i)\n\n\*\*References?:\*\*[\s\S]*$`),
	regexp.MustCompile(`(?i)\n\n\*\*Citations?:\*\*[\s\S]*$`),
}

// FromSections builds one citation per FDA section that backed an answer.
// All point at the Orange Book since label data has no per-section URL.
func FromSections(sections []string, medication string) []models.Citation {
	citations := make([]models.Citation, 0, len(sections))
	for i, section := range sections {
		citations = append(citations, models.Citation{
			Title:      "FDA " + TitleCase(strings.ReplaceAll(section, "_", " ")),
			URL:        orangeBookURL,
			Snippet:    fmt.Sprintf("Information from FDA %s section for %s", section, medication),
			DisplayURL: "www.fda.gov",
			Position:   i + 1,
		})
	}
	return citations
}

// Generic is the entity-level citation used when no label sections could
// be resolved for an answer.
func Generic(medication string) []models.Citation {
	return []models.Citation{{
		Title:      "FDA Drug Label: " + TitleCase(medication),
		URL:        orangeBookURL,
		Snippet:    fmt.Sprintf("FDA label information for %s", medication),
		DisplayURL: "www.fda.gov",
		Position:   1,
	}}
}

// ExtractFromResponse parses markdown links out of a web-search answer,
// returning the citations and the answer with any trailing sources block
// stripped. OpenAI tracking parameters are removed from URLs.
func ExtractFromResponse(response string) (string, []models.Citation) {
	matches := linkRegex.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return response, nil
	}

	citations := make([]models.Citation, 0, len(matches))
	for i, match := range matches {
		linkText := match[1]
		link := strings.Replace(match[2], "?utm_source=openai", "", 1)

		domain := ""
		if parsed, err := url.Parse(link); err == nil {
			domain = parsed.Hostname()
		}

		title := linkText
		if title == "" {
			title = domain
		}

		citations = append(citations, models.Citation{
			Title:      title,
			URL:        link,
			Snippet:    fmt.Sprintf("Source from %s", domain),
			DisplayURL: domain,
			Position:   i + 1,
		})
	}

	formatted := response
	for _, re := range sourcesBlockRegexes {
		formatted = re.ReplaceAllString(formatted, "")
	}
	return formatted, citations
}

// TitleCase uppercases the first letter of each space-separated word.
func TitleCase(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

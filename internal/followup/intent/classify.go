// Package intent routes follow-up questions to the web-search path or the
// FDA reference-data path.
package intent

import "strings"

// Intent is the routing decision for a follow-up question.
type Intent string

const (
	WebSearch Intent = "web_search"
	FDASearch Intent = "fda_search"
)

// webSearchKeywords flag questions about current research, studies and
// news, which saved label data can never answer.
var webSearchKeywords = []string{
	"studies", "research", "latest", "recent", "current", "new",
	"clinical trials", "trials", "evidence", "findings", "data",
	"published", "literature", "papers", "articles", "news",
	"updates", "developments", "breakthrough", "discovery",
	"compare", "comparison", "versus", "vs", "alternative",
	"review", "meta-analysis", "systematic review",
}

// Classify picks the path for a question. A forced web_search intent wins
// over keyword detection; any other forced value is ignored.
func Classify(query string, forced Intent) Intent {
	if forced == WebSearch {
		return WebSearch
	}

	queryLower := strings.ToLower(query)
	for _, keyword := range webSearchKeywords {
		if strings.Contains(queryLower, keyword) {
			return WebSearch
		}
	}
	return FDASearch
}

// Package openfda queries the openFDA drug label API for medication
// reference data.
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/common/metrics"
)

var (
	// ErrNoResults means every search strategy came back empty.
	ErrNoResults = errors.New("no FDA label data found")
)

// CommonSections are the label sections fetched for follow-up questions
// when the caller has no narrower preference.
var CommonSections = []string{
	"dosage_and_administration",
	"indications_and_usage",
	"warnings",
	"adverse_reactions",
	"contraindications",
	"drug_interactions",
	"precautions",
}

type Config struct {
	BaseURL string
	APIKey  string
	Limit   int
}

type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

// Label is a single drug label record. Section fields arrive as string
// arrays keyed by snake_case section name; OpenFDA metadata is skipped
// during extraction.
type Label map[string]json.RawMessage

type searchResponse struct {
	Results []Label `json:"results"`
}

func NewClient(config *Config, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		config: config,
		client: httpClient,
		logger: log.With(map[string]interface{}{
			"component": "openfda",
		}),
	}
}

// SearchLabel tries exact generic, exact brand, partial generic and
// partial brand matches in order, returning the first strategy that
// yields results.
func (c *Client) SearchLabel(ctx context.Context, medication string) ([]Label, error) {
	clean := strings.ToLower(strings.TrimSpace(medication))
	if clean == "" {
		return nil, ErrNoResults
	}

	strategies := []struct {
		name  string
		query string
	}{
		{"generic_exact", fmt.Sprintf(`openfda.generic_name:"%s"`, clean)},
		{"brand_exact", fmt.Sprintf(`openfda.brand_name:"%s"`, clean)},
		{"generic_partial", fmt.Sprintf(`openfda.generic_name:%s`, clean)},
		{"brand_partial", fmt.Sprintf(`openfda.brand_name:%s`, clean)},
	}

	var lastErr error
	for _, strategy := range strategies {
		labels, err := c.search(ctx, strategy.query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.OpenFDARequests.WithLabelValues(strategy.name, "error").Inc()
			c.logger.Warn("search strategy failed", map[string]interface{}{
				"strategy":   strategy.name,
				"medication": clean,
				"error":      err.Error(),
			})
			lastErr = err
			continue
		}
		if len(labels) == 0 {
			metrics.OpenFDARequests.WithLabelValues(strategy.name, "empty").Inc()
			continue
		}
		metrics.OpenFDARequests.WithLabelValues(strategy.name, "hit").Inc()
		c.logger.Info("label search succeeded", map[string]interface{}{
			"strategy":   strategy.name,
			"medication": clean,
			"results":    len(labels),
		})
		return labels, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all search strategies failed: %w", lastErr)
	}
	return nil, ErrNoResults
}

func (c *Client) search(ctx context.Context, query string) ([]Label, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", fmt.Sprintf("%d", c.config.Limit))
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// openFDA answers 404 for a query with no matches.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openFDA returned %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Results, nil
}

// ExtractSections pulls the requested sections out of a result set,
// concatenating across labels. Non-array fields and openfda metadata
// are ignored.
func ExtractSections(labels []Label, sections []string) map[string][]string {
	extracted := make(map[string][]string)
	for _, label := range labels {
		for _, section := range sections {
			raw, ok := label[section]
			if !ok {
				continue
			}
			var values []string
			if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
				continue
			}
			extracted[section] = append(extracted[section], values...)
		}
	}
	return extracted
}

// FormatContext renders section data as the prompt context block and
// reports which sections it contained. Section names get their
// underscores replaced so prompts read naturally.
func FormatContext(data map[string][]string, medication string, order []string) (string, []string) {
	if len(data) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FDA Information for %s:\n\n", medication)

	var available []string
	for _, section := range order {
		values := data[section]
		if len(values) == 0 {
			continue
		}
		name := strings.ReplaceAll(section, "_", " ")
		available = append(available, name)
		b.WriteString(strings.ToUpper(name) + ":\n")
		for _, item := range values {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}

	if len(available) == 0 {
		return "", nil
	}
	return b.String(), available
}

// internal/openfda/client_test.go
package openfda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"followup-orchestrator/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, serverURL string) *Client {
	return NewClient(&Config{BaseURL: serverURL, Limit: 3}, nil, logger.NewTestLogger(t))
}

func labelPayload(sections map[string][]string) string {
	label := make(map[string]interface{}, len(sections))
	for k, v := range sections {
		label[k] = v
	}
	body, _ := json.Marshal(map[string]interface{}{
		"results": []interface{}{label},
	})
	return string(body)
}

// ==========================
// SearchLabel Tests
// ==========================

func TestClient_SearchLabel_FirstStrategyHit(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("search"))
		w.Write([]byte(labelPayload(map[string][]string{
			"warnings": {"May cause drowsiness."},
		})))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	labels, err := c.SearchLabel(context.Background(), " Ibuprofen ")

	assert.NoError(t, err)
	assert.Len(t, labels, 1)
	assert.Len(t, queries, 1)
	assert.Equal(t, `openfda.generic_name:"ibuprofen"`, queries[0])
}

func TestClient_SearchLabel_FallsThroughStrategies(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("search"))
		// Exact matches miss, first partial match hits.
		if len(queries) < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(labelPayload(map[string][]string{
			"indications_and_usage": {"For temporary relief of minor aches."},
		})))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	labels, err := c.SearchLabel(context.Background(), "advil")

	assert.NoError(t, err)
	assert.Len(t, labels, 1)
	assert.Equal(t, []string{
		`openfda.generic_name:"advil"`,
		`openfda.brand_name:"advil"`,
		`openfda.generic_name:advil`,
	}, queries)
}

func TestClient_SearchLabel_AllStrategiesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	labels, err := c.SearchLabel(context.Background(), "madeupdrug")

	assert.Nil(t, labels)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestClient_SearchLabel_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.SearchLabel(context.Background(), "ibuprofen")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "all search strategies failed")
}

func TestClient_SearchLabel_EmptyMedication(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	_, err := c.SearchLabel(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoResults)
}

// ==========================
// Section Extraction Tests
// ==========================

func TestExtractSections_FiltersAndConcatenates(t *testing.T) {
	labels := []Label{
		{
			"warnings":  json.RawMessage(`["Do not exceed the stated dose."]`),
			"openfda":   json.RawMessage(`{"generic_name":["ibuprofen"]}`),
			"unrelated": json.RawMessage(`"scalar"`),
		},
		{
			"warnings":              json.RawMessage(`["Keep out of reach of children."]`),
			"indications_and_usage": json.RawMessage(`["Pain relief."]`),
		},
	}

	extracted := ExtractSections(labels, []string{"warnings", "contraindications"})

	assert.Equal(t, []string{
		"Do not exceed the stated dose.",
		"Keep out of reach of children.",
	}, extracted["warnings"])
	assert.NotContains(t, extracted, "indications_and_usage")
	assert.NotContains(t, extracted, "contraindications")
}

func TestFormatContext_OrderAndNames(t *testing.T) {
	data := map[string][]string{
		"warnings":              {"May cause drowsiness."},
		"indications_and_usage": {"Pain relief."},
	}

	context, available := FormatContext(data, "ibuprofen", []string{"indications_and_usage", "warnings", "precautions"})

	assert.Contains(t, context, "FDA Information for ibuprofen:")
	assert.Contains(t, context, "INDICATIONS AND USAGE:\n- Pain relief.")
	assert.Contains(t, context, "WARNINGS:\n- May cause drowsiness.")
	assert.Equal(t, []string{"indications and usage", "warnings"}, available)
}

func TestFormatContext_Empty(t *testing.T) {
	context, available := FormatContext(nil, "ibuprofen", CommonSections)
	assert.Empty(t, context)
	assert.Nil(t, available)
}

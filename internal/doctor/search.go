// File: internal/doctor/search.go
package doctor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	platformes "medibook_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IndexName is the Elasticsearch index holding doctor documents.
const IndexName = "doctors"

// SearchIndex is a full-text index over doctor profiles.
type SearchIndex interface {
	Index(ctx context.Context, d *Doctor) error
	Search(ctx context.Context, query SearchQuery) ([]uuid.UUID, int64, error)
	BulkIndex(ctx context.Context, doctors []Doctor, refresh string) (indexed int, err error)
}

// ElasticsearchIndex implements SearchIndex on Elasticsearch.
type ElasticsearchIndex struct {
	client *platformes.ESClientWrapper
	logger *zap.Logger
}

// NewSearchIndex returns nil when client is nil, which disables indexing.
func NewSearchIndex(client *platformes.ESClientWrapper, logger *zap.Logger) SearchIndex {
	if client == nil {
		return nil
	}
	return &ElasticsearchIndex{client: client, logger: logger.Named("doctor_search")}
}

// IndexMapping returns the mapping of the doctors index.
func IndexMapping() map[string]interface{} {
	keywordSub := map[string]interface{}{
		"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"user_id":          map[string]interface{}{"type": "keyword"},
				"slug":             map[string]interface{}{"type": "keyword"},
				"name":             map[string]interface{}{"type": "text", "fields": keywordSub},
				"specialization":   map[string]interface{}{"type": "text", "fields": keywordSub},
				"qualifications":   map[string]interface{}{"type": "text"},
				"bio":              map[string]interface{}{"type": "text"},
				"experience":       map[string]interface{}{"type": "integer"},
				"consultation_fee": map[string]interface{}{"type": "double"},
				"rating":           map[string]interface{}{"type": "float"},
				"created_at":       map[string]interface{}{"type": "date"},
				"updated_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
}

// ToDocument converts a doctor into its Elasticsearch document.
func ToDocument(d *Doctor) ([]byte, error) {
	doc := map[string]interface{}{
		"user_id":          d.UserID,
		"slug":             d.Slug,
		"name":             d.Name,
		"specialization":   d.Specialization,
		"qualifications":   []string(d.Qualifications),
		"experience":       d.Experience,
		"consultation_fee": d.ConsultationFee,
		"created_at":       d.CreatedAt,
		"updated_at":       d.UpdatedAt,
	}
	if d.Bio != nil {
		doc["bio"] = *d.Bio
	}
	if d.Rating != nil {
		doc["rating"] = *d.Rating
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error marshalling doctor to JSON for ES: %w", err)
	}
	return body, nil
}

func (e *ElasticsearchIndex) Index(ctx context.Context, d *Doctor) error {
	body, err := ToDocument(d)
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      IndexName,
		DocumentID: d.ID.String(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, e.client.Client)
	if err != nil {
		return fmt.Errorf("indexing doctor %s: %w", d.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexing doctor %s: status %s", d.ID, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching doctor ids ordered by relevance, plus the total hit count.
func (e *ElasticsearchIndex) Search(ctx context.Context, query SearchQuery) ([]uuid.UUID, int64, error) {
	body, err := json.Marshal(buildSearchBody(query))
	if err != nil {
		return nil, 0, fmt.Errorf("encoding doctor search: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{IndexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client.Client)
	if err != nil {
		return nil, 0, fmt.Errorf("doctor search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("doctor search: status %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decoding doctor search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			e.logger.Warn("Skipping search hit with malformed id", zap.String("id", hit.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, parsed.Hits.Total.Value, nil
}

func buildSearchBody(query SearchQuery) map[string]interface{} {
	boolQuery := map[string]interface{}{}
	if q := strings.TrimSpace(query.Query); q != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     q,
					"fields":    []string{"name^3", "specialization^2", "qualifications", "bio"},
					"fuzziness": "AUTO",
				},
			},
		}
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	if spec := strings.TrimSpace(query.Specialization); spec != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"specialization": map[string]interface{}{"query": spec, "operator": "and"},
				},
			},
		}
	}
	return map[string]interface{}{
		"from":             query.Offset(),
		"size":             query.Limit(),
		"track_total_hits": true,
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort":             []interface{}{"_score", map[string]interface{}{"name.keyword": "asc"}},
	}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// BulkIndex indexes doctors in one bulk request and reports how many
// documents were accepted. Item-level failures are logged.
func (e *ElasticsearchIndex) BulkIndex(ctx context.Context, doctors []Doctor, refresh string) (int, error) {
	if len(doctors) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for i := range doctors {
		d := &doctors[i]
		doc, err := ToDocument(d)
		if err != nil {
			e.logger.Error("Failed to convert doctor to Elasticsearch document", zap.String("doctorID", d.ID.String()), zap.Error(err))
			continue
		}
		fmt.Fprintf(&buf, `{"index":{"_index":"%s","_id":"%s"}}`+"\n", IndexName, d.ID.String())
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return 0, nil
	}

	res, err := esapi.BulkRequest{Body: &buf, Refresh: refresh}.Do(ctx, e.client.Client)
	if err != nil {
		return 0, fmt.Errorf("doctor bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("doctor bulk request: status %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding bulk response: %w", err)
	}
	indexed := 0
	for _, item := range parsed.Items {
		if item.Index.Error != nil {
			e.logger.Error("Failed to index document in bulk batch",
				zap.String("doctorID", item.Index.ID),
				zap.Int("status", item.Index.Status),
				zap.Any("error", item.Index.Error),
			)
			continue
		}
		indexed++
	}
	return indexed, nil
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/projects"
)

const defaultResultSize = 50

const indexMapping = `{
  "mappings": {
    "properties": {
      "projectName":      {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "projectOverview":  {"type": "text"},
      "clientName":       {"type": "text"},
      "clientEmail":      {"type": "keyword"},
      "developmentAreas": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "status":           {"type": "keyword"},
      "quotationNumber":  {"type": "keyword"},
      "submittedAt":      {"type": "date"}
    }
  }
}`

// document is the indexed view of a project
type document struct {
	ProjectName      string   `json:"projectName"`
	ProjectOverview  string   `json:"projectOverview"`
	ClientName       string   `json:"clientName"`
	ClientEmail      string   `json:"clientEmail"`
	DevelopmentAreas []string `json:"developmentAreas"`
	Status           string   `json:"status"`
	QuotationNumber  string   `json:"quotationNumber"`
	SubmittedAt      string   `json:"submittedAt"`
}

// ProjectIndex keeps projects searchable in Elasticsearch
type ProjectIndex struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

func NewProjectIndex(client *elasticsearch.Client, index string, logger *zap.Logger) *ProjectIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectIndex{client: client, index: index, logger: logger}
}

// NewClient builds an Elasticsearch client. username may be empty.
func NewClient(addresses []string, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
}

// EnsureIndex creates the index with its mapping when it does not exist
func (p *ProjectIndex) EnsureIndex(ctx context.Context) error {
	res, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = p.client.Indices.Create(p.index,
		p.client.Indices.Create.WithContext(ctx),
		p.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res.StatusCode, res.Body)
	}

	p.logger.Info("Created search index", zap.String("index", p.index))
	return nil
}

// Index upserts project under its hex id
func (p *ProjectIndex) Index(ctx context.Context, project *projects.Project) error {
	doc := document{
		ProjectName:      project.ProjectName,
		ProjectOverview:  project.ProjectOverview,
		ClientName:       project.ClientName,
		ClientEmail:      project.ClientEmail,
		DevelopmentAreas: project.DevelopmentAreas,
		Status:           project.Status,
		QuotationNumber:  project.QuotationNumber,
	}
	if !project.SubmittedAt.IsZero() {
		doc.SubmittedAt = project.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := p.client.Index(p.index, bytes.NewReader(body),
		p.client.Index.WithContext(ctx),
		p.client.Index.WithDocumentID(project.ID.Hex()),
	)
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index project", res.StatusCode, res.Body)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns the ids of projects matching query, best match first
func (p *ProjectIndex) Search(ctx context.Context, query string) ([]string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"projectName^3", "projectOverview", "clientName^2", "developmentAreas", "quotationNumber"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	})
	if err != nil {
		return nil, err
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(bytes.NewReader(body)),
		p.client.Search.WithSize(defaultResultSize),
	)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search projects", res.StatusCode, res.Body)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func responseError(op string, status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 1024))
	return fmt.Errorf("%s: elasticsearch returned %d: %s", op, status, strings.TrimSpace(string(raw)))
}

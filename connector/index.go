package connector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/becomeliminal/nim-recall/core"
)

// IndexDocument is an external document synced into a local Index.
type IndexDocument struct {
	ID             string    `json:"id"`
	Account        string    `json:"account"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	ContainerID    string    `json:"container_id"`
	ContainerTitle string    `json:"container_title"`
	CreatedAt      time.Time `json:"created_at"`
}

// Index answers connector searches from a local BM25 index of documents
// synced from an external service, e.g. a mailbox mirrored by a background
// job. Documents are scoped by Credentials.Account.
type Index struct {
	kind  string
	index bleve.Index
}

var _ Connector = (*Index)(nil)

// NewMemIndex creates an in-memory index.
func NewMemIndex(kind string) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create %s index: %w", kind, err)
	}
	return &Index{kind: kind, index: idx}, nil
}

// OpenIndex opens the index at path, creating it if needed.
func OpenIndex(kind, path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, buildIndexMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", kind, err)
	}
	return &Index{kind: kind, index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("body", text)
	doc.AddFieldMappingsAt("account", kw)
	doc.AddFieldMappingsAt("id", kw)
	doc.AddFieldMappingsAt("container_id", kw)
	doc.AddFieldMappingsAt("container_title", kw)
	doc.AddFieldMappingsAt("created_at", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Add indexes or replaces doc.
func (x *Index) Add(doc IndexDocument) error {
	if doc.ID == "" {
		return core.InvalidInput("index "+x.kind, "document id is required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := x.index.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("index %s document: %w", x.kind, err)
	}
	return nil
}

// Remove deletes a document. Unknown ids are ignored.
func (x *Index) Remove(id string) error {
	return x.index.Delete(id)
}

// Kind implements Connector.
func (x *Index) Kind() string { return x.kind }

// Search implements Connector. Only documents of creds.Account match, and
// credentials without an account are treated as not provisioned.
func (x *Index) Search(ctx context.Context, text string, creds Credentials, limit int) ([]core.RetrievedItem, error) {
	if creds.Account == "" {
		return nil, core.NotProvisioned(x.kind, fmt.Errorf("no account: %w", ErrNoCredentials))
	}
	if limit <= 0 || text == "" {
		return nil, nil
	}

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(2)
	body := bleve.NewMatchQuery(text)
	body.SetField("body")

	account := bleve.NewTermQuery(creds.Account)
	account.SetField("account")
	q := bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(title, body), account)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"title", "body", "container_id", "container_title", "created_at"}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s index search: %w", x.kind, err)
	}

	items := make([]core.RetrievedItem, 0, len(res.Hits))
	for _, hit := range res.Hits {
		titleText, _ := hit.Fields["title"].(string)
		bodyText, _ := hit.Fields["body"].(string)
		containerID, _ := hit.Fields["container_id"].(string)
		containerTitle, _ := hit.Fields["container_title"].(string)
		created, _ := hit.Fields["created_at"].(string)
		createdAt, _ := time.Parse(time.RFC3339, created)

		content := bodyText
		if content == "" {
			content = titleText
		}
		items = append(items, core.RetrievedItem{
			Type:    core.ConnectorType(x.kind),
			ID:      hit.ID,
			Content: content,
			Summary: titleText,
			Metadata: core.ItemMetadata{
				ContainerID:    containerID,
				ContainerTitle: containerTitle,
				CreatedAt:      createdAt,
				Provenance:     x.kind,
			},
		})
	}
	return items, nil
}

// Close closes the underlying index.
func (x *Index) Close() error {
	return x.index.Close()
}

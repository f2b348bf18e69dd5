package connector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/becomeliminal/nim-recall/core"
)

// RESTConfig configures a REST connector.
type RESTConfig struct {
	Kind    string
	BaseURL string
	// SearchPath defaults to /search.
	SearchPath string
	// Timeout bounds a single HTTP request (default 10s). The retrieval
	// coordinator applies its own, usually tighter, per-source deadline.
	Timeout time.Duration
	// RetryCount retries 5xx responses and transport errors (default 0).
	RetryCount int
}

// REST searches any service that exposes
//
//	GET <SearchPath>?q=<query>&limit=<n>
//
// and answers {"results": [{"id", "title", "snippet", ...}]}.
type REST struct {
	kind   string
	path   string
	client *resty.Client
}

var _ Connector = (*REST)(nil)

type restResult struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Snippet        string    `json:"snippet"`
	URL            string    `json:"url"`
	ContainerID    string    `json:"container_id"`
	ContainerTitle string    `json:"container_title"`
	CreatedAt      time.Time `json:"created_at"`
}

type restResponse struct {
	Results []restResult `json:"results"`
}

// NewREST creates a REST connector.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.Kind == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest connector: kind and base URL are required")
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/search"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount)

	return &REST{kind: cfg.Kind, path: cfg.SearchPath, client: client}, nil
}

// Kind implements Connector.
func (r *REST) Kind() string { return r.kind }

// Search implements Connector.
func (r *REST) Search(ctx context.Context, query string, creds Credentials, limit int) ([]core.RetrievedItem, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}

	req := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     query,
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&restResponse{})
	if creds.AccessToken != "" {
		req.SetAuthToken(creds.AccessToken)
		if creds.TokenType != "" {
			req.SetAuthScheme(creds.TokenType)
		}
	}

	resp, err := req.Get(r.path)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", r.kind, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s search: status %d: %s", r.kind, resp.StatusCode(), resp.String())
	}

	out := resp.Result().(*restResponse)
	items := make([]core.RetrievedItem, 0, len(out.Results))
	for _, res := range out.Results {
		if len(items) == limit {
			break
		}
		content := res.Snippet
		if content == "" {
			content = res.Title
		}
		items = append(items, core.RetrievedItem{
			Type:    core.ConnectorType(r.kind),
			ID:      res.ID,
			Content: content,
			Summary: Summarize(res.Title, res.Snippet),
			Metadata: core.ItemMetadata{
				ContainerID:    res.ContainerID,
				ContainerTitle: res.ContainerTitle,
				CreatedAt:      res.CreatedAt,
				Provenance:     r.kind,
			},
		})
	}
	return items, nil
}

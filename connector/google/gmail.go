package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
)

// Mail searches a Gmail mailbox with Gmail's own query syntax.
type Mail struct {
	cfg clientConfig
}

var _ connector.Connector = (*Mail)(nil)

// NewMail creates a Gmail connector.
func NewMail(opts ...Option) *Mail {
	return &Mail{cfg: newClientConfig(opts)}
}

// Kind implements connector.Connector.
func (m *Mail) Kind() string { return connector.KindEmail }

// Search lists matching message ids, then fetches their headers and
// snippets concurrently.
func (m *Mail) Search(ctx context.Context, query string, creds connector.Credentials, limit int) ([]core.RetrievedItem, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}
	svc, err := gmail.NewService(ctx, m.cfg.clientOptions(ctx, creds)...)
	if err != nil {
		return nil, fmt.Errorf("gmail client: %w", err)
	}

	list, err := svc.Users.Messages.List("me").
		Q(query).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail search: %w", err)
	}
	refs := list.Messages
	if len(refs) > limit {
		refs = refs[:limit]
	}

	msgs := make([]*gmail.Message, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range refs {
		g.Go(func() error {
			msg, err := svc.Users.Messages.Get("me", ref.Id).
				Format("metadata").
				MetadataHeaders("Subject", "From").
				Context(gctx).
				Do()
			if err != nil {
				return fmt.Errorf("gmail get %s: %w", ref.Id, err)
			}
			msgs[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]core.RetrievedItem, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, mailItem(msg))
	}
	return items, nil
}

func mailItem(msg *gmail.Message) core.RetrievedItem {
	var subject, from string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				subject = h.Value
			case "from":
				from = h.Value
			}
		}
	}
	if subject == "" {
		subject = "(no subject)"
	}
	title := subject
	if from != "" {
		title += " from " + from
	}

	var created time.Time
	if msg.InternalDate > 0 {
		created = time.UnixMilli(msg.InternalDate).UTC()
	}

	return core.RetrievedItem{
		Type:    core.ConnectorType(connector.KindEmail),
		ID:      msg.Id,
		Content: connector.Summarize(subject, msg.Snippet),
		Summary: connector.Summarize(title, msg.Snippet),
		Metadata: core.ItemMetadata{
			ContainerID:    msg.ThreadId,
			ContainerTitle: subject,
			CreatedAt:      created,
			Provenance:     connector.KindEmail,
		},
	}
}

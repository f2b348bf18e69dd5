package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
)

const driveFields = "files(id,name,mimeType,description,createdTime,modifiedTime,parents)"

// Drive runs full-text searches over the files in a Google Drive.
type Drive struct {
	cfg clientConfig
}

var _ connector.Connector = (*Drive)(nil)

// NewDrive creates a Drive connector.
func NewDrive(opts ...Option) *Drive {
	return &Drive{cfg: newClientConfig(opts)}
}

// Kind implements connector.Connector.
func (d *Drive) Kind() string { return connector.KindDrive }

// Search implements connector.Connector.
func (d *Drive) Search(ctx context.Context, query string, creds connector.Credentials, limit int) ([]core.RetrievedItem, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	svc, err := drive.NewService(ctx, d.cfg.clientOptions(ctx, creds)...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}

	list, err := svc.Files.List().
		Q(driveQuery(query)).
		PageSize(int64(limit)).
		Fields(driveFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive search: %w", err)
	}

	items := make([]core.RetrievedItem, 0, len(list.Files))
	for _, f := range list.Files {
		if len(items) == limit {
			break
		}
		items = append(items, driveItem(f))
	}
	return items, nil
}

// driveQuery builds a Drive search expression matching text anywhere in a
// file, skipping the trash.
func driveQuery(text string) string {
	esc := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(strings.TrimSpace(text))
	return fmt.Sprintf("fullText contains '%s' and trashed = false", esc)
}

func driveItem(f *drive.File) core.RetrievedItem {
	var parent string
	if len(f.Parents) > 0 {
		parent = f.Parents[0]
	}
	content := f.Description
	if content == "" {
		content = f.Name
	}
	return core.RetrievedItem{
		Type:    core.ConnectorType(connector.KindDrive),
		ID:      f.Id,
		Content: content,
		Summary: connector.Summarize(f.Name, f.Description),
		Metadata: core.ItemMetadata{
			ContainerID: parent,
			CreatedAt:   parseTime(f.CreatedTime),
			Provenance:  connector.KindDrive,
		},
	}
}

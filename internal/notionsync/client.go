package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond is Notion's documented average request limit per integration.
const DefaultRequestsPerSecond = 3

// NotionClient implements NotionService over the jomei/notionapi client. Every call
// waits on a shared limiter so large exports stay under the API rate limit.
type NotionClient struct {
	client  *notionapi.Client
	limiter *rate.Limiter
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a client authenticated with an integration token, paced at
// DefaultRequestsPerSecond.
func NewNotionClient(token string) *NotionClient {
	return NewNotionClientWithLimiter(token, rate.NewLimiter(DefaultRequestsPerSecond, 1))
}

// NewNotionClientWithLimiter creates a client paced by limiter; nil disables pacing.
func NewNotionClientWithLimiter(token string, limiter *rate.Limiter) *NotionClient {
	return &NotionClient{
		client:  notionapi.NewClient(notionapi.Token(token)),
		limiter: limiter,
	}
}

func (n *NotionClient) wait(ctx context.Context, op string) error {
	if n.limiter == nil {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}
	return nil
}

// CreatePage creates a page in databaseID with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.wait(ctx, "CreatePage"); err != nil {
		return nil, err
	}

	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

// UpdatePage overwrites the given properties of an existing page.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.wait(ctx, "UpdatePage"); err != nil {
		return nil, err
	}

	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: page %s: %w", pageID, err)
	}
	return page, nil
}

// QueryDatabase returns one page of results.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := n.wait(ctx, "QueryDatabase"); err != nil {
		return nil, err
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchivePage sets archived on a page, which moves it to the Notion trash.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	if err := n.wait(ctx, "ArchivePage"); err != nil {
		return err
	}

	if _, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("ArchivePage: page %s: %w", pageID, err)
	}
	return nil
}

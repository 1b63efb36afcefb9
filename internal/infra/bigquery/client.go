// Package bigquery stores synchronized datasets and sync run history in BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	syncRowsTable = "sync_rows"
	syncRunsTable = "sync_runs"
)

// Client wraps a shared BigQuery client bound to one dataset.
type Client struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewClient creates a BigQuery client for the given project and dataset.
func NewClient(ctx context.Context, projectID, datasetID string) (*Client, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewClient: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return &Client{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// tableRef returns the fully qualified, backtick-quoted table name.
func tableRef(projectID, datasetID, table string) string {
	return "`" + projectID + "." + datasetID + "." + table + "`"
}

// runDML runs a statement and waits for it to finish.
func (c *Client) runDML(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := c.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

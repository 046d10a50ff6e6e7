// Copyright 2026 Helix Data
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package athena runs SQL against Amazon Athena and exposes schema metadata.
package athena

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// queryAPI is the subset of the Athena SDK surface the client uses.
// Narrow so tests can fake it.
type queryAPI interface {
	StartQueryExecution(ctx context.Context, params *awsathena.StartQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *awsathena.GetQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *awsathena.GetQueryResultsInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryResultsOutput, error)
	ListTableMetadata(ctx context.Context, params *awsathena.ListTableMetadataInput, optFns ...func(*awsathena.Options)) (*awsathena.ListTableMetadataOutput, error)
	GetTableMetadata(ctx context.Context, params *awsathena.GetTableMetadataInput, optFns ...func(*awsathena.Options)) (*awsathena.GetTableMetadataOutput, error)
}

// Config holds configuration for the Athena client.
type Config struct {
	// Database is the Athena (Glue) database queries run against. Required.
	Database string

	// Catalog is the data catalog name. Default: AwsDataCatalog.
	Catalog string

	// Workgroup is the Athena workgroup. Optional.
	Workgroup string

	// OutputLocation is the S3 URI for query results
	// (e.g., s3://bucket/prefix/). Required unless the workgroup enforces one.
	OutputLocation string

	// PollInterval between query status checks. Default: 2s.
	PollInterval time.Duration

	// MaxRows caps how many result rows are fetched. Default: 500.
	MaxRows int

	// Logger for query lifecycle events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Client runs queries against Amazon Athena.
type Client struct {
	api    queryAPI
	cfg    Config
	logger *zap.Logger
}

// NewClient creates an Athena client from an AWS config.
func NewClient(awsCfg aws.Config, cfg Config) *Client {
	return newClient(awsathena.NewFromConfig(awsCfg), cfg)
}

func newClient(api queryAPI, cfg Config) *Client {
	if cfg.Catalog == "" {
		cfg.Catalog = "AwsDataCatalog"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{api: api, cfg: cfg, logger: cfg.Logger}
}

// QueryResult holds the rows returned by a query.
type QueryResult struct {
	// ExecutionID is the Athena query execution id
	ExecutionID string

	// Columns are the result column labels, in order
	Columns []string

	// Rows are the result rows, keyed by column label
	Rows []map[string]string

	// ScannedBytes is the amount of data the query scanned
	ScannedBytes int64
}

// Column describes one column of a table.
type Column struct {
	Name    string
	Type    string
	Comment string
}

// TableSchema describes a table's columns.
type TableSchema struct {
	Name    string
	Columns []Column
}

// RunQuery executes sql and blocks until the query finishes, returning its rows.
func (c *Client) RunQuery(ctx context.Context, sql string) (*QueryResult, error) {
	input := &awsathena.StartQueryExecutionInput{
		QueryString:        aws.String(sql),
		ClientRequestToken: aws.String(uuid.NewString()),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: aws.String(c.cfg.Database),
			Catalog:  aws.String(c.cfg.Catalog),
		},
	}
	if c.cfg.Workgroup != "" {
		input.WorkGroup = aws.String(c.cfg.Workgroup)
	}
	if c.cfg.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(c.cfg.OutputLocation),
		}
	}

	started, err := c.api.StartQueryExecution(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start query: %w", err)
	}
	executionID := aws.ToString(started.QueryExecutionId)

	c.logger.Debug("athena query started",
		zap.String("execution_id", executionID),
		zap.String("database", c.cfg.Database),
	)

	execution, err := c.waitForQuery(ctx, executionID)
	if err != nil {
		return nil, err
	}

	result, err := c.fetchResults(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Statistics != nil {
		result.ScannedBytes = aws.ToInt64(execution.Statistics.DataScannedInBytes)
	}

	c.logger.Info("athena query finished",
		zap.String("execution_id", executionID),
		zap.Int("rows", len(result.Rows)),
		zap.Int64("scanned_bytes", result.ScannedBytes),
	)

	return result, nil
}

// waitForQuery polls the query execution until it reaches a terminal state.
func (c *Client) waitForQuery(ctx context.Context, executionID string) (*types.QueryExecution, error) {
	for {
		out, err := c.api.GetQueryExecution(ctx, &awsathena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(executionID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get query status: %w", err)
		}

		execution := out.QueryExecution
		state := execution.Status.State
		switch state {
		case types.QueryExecutionStateSucceeded:
			return execution, nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			reason := aws.ToString(execution.Status.StateChangeReason)
			return nil, fmt.Errorf("query %s %s: %s", executionID, state, reason)
		}

		c.logger.Debug("athena query running",
			zap.String("execution_id", executionID),
			zap.String("state", string(state)),
		)

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("query %s wait cancelled: %w", executionID, ctx.Err())
		}
	}
}

// fetchResults pages through GetQueryResults up to MaxRows.
func (c *Client) fetchResults(ctx context.Context, executionID string) (*QueryResult, error) {
	result := &QueryResult{ExecutionID: executionID}

	var nextToken *string
	first := true
	for {
		out, err := c.api.GetQueryResults(ctx, &awsathena.GetQueryResultsInput{
			QueryExecutionId: aws.String(executionID),
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get query results: %w", err)
		}

		rows := out.ResultSet.Rows
		if first {
			if meta := out.ResultSet.ResultSetMetadata; meta != nil {
				for _, col := range meta.ColumnInfo {
					result.Columns = append(result.Columns, aws.ToString(col.Label))
				}
			}
			// Athena returns the header as the first row of the first page
			// for SELECT queries; drop it when it mirrors the column labels.
			if len(rows) > 0 && isHeaderRow(rows[0], result.Columns) {
				rows = rows[1:]
			}
			first = false
		}

		for _, row := range rows {
			if len(result.Rows) >= c.cfg.MaxRows {
				return result, nil
			}
			parsed := make(map[string]string, len(result.Columns))
			for i, datum := range row.Data {
				if i < len(result.Columns) {
					parsed[result.Columns[i]] = aws.ToString(datum.VarCharValue)
				}
			}
			result.Rows = append(result.Rows, parsed)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			return result, nil
		}
	}
}

func isHeaderRow(row types.Row, columns []string) bool {
	if len(row.Data) != len(columns) {
		return false
	}
	for i, datum := range row.Data {
		if aws.ToString(datum.VarCharValue) != columns[i] {
			return false
		}
	}
	return len(columns) > 0
}

// ListTables returns the names of all tables in the configured database.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	var nextToken *string

	for {
		out, err := c.api.ListTableMetadata(ctx, &awsathena.ListTableMetadataInput{
			CatalogName:  aws.String(c.cfg.Catalog),
			DatabaseName: aws.String(c.cfg.Database),
			NextToken:    nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}

		for _, table := range out.TableMetadataList {
			tables = append(tables, aws.ToString(table.Name))
		}

		nextToken = out.NextToken
		if nextToken == nil {
			return tables, nil
		}
	}
}

// DescribeTable returns the column schema of one table.
func (c *Client) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	out, err := c.api.GetTableMetadata(ctx, &awsathena.GetTableMetadataInput{
		CatalogName:  aws.String(c.cfg.Catalog),
		DatabaseName: aws.String(c.cfg.Database),
		TableName:    aws.String(table),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	schema := &TableSchema{Name: aws.ToString(out.TableMetadata.Name)}
	for _, col := range out.TableMetadata.Columns {
		schema.Columns = append(schema.Columns, Column{
			Name:    aws.ToString(col.Name),
			Type:    aws.ToString(col.Type),
			Comment: aws.ToString(col.Comment),
		})
	}
	return schema, nil
}

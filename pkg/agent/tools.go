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
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helix-data/quill/pkg/athena"
	"github.com/helix-data/quill/pkg/llm"
)

// Database is the query backend the agent's tools run against.
// *athena.Client satisfies it.
type Database interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (*athena.TableSchema, error)
	RunQuery(ctx context.Context, sql string) (*athena.QueryResult, error)
}

var _ Database = (*athena.Client)(nil)

// DatabaseTools returns the schema-discovery and query-execution tools over db.
func DatabaseTools(db Database) []llm.Tool {
	return []llm.Tool{
		&listTablesTool{db: db},
		&describeTableTool{db: db},
		&runQueryTool{db: db},
	}
}

type listTablesTool struct {
	db Database
}

func (t *listTablesTool) Name() string { return "list_tables" }

func (t *listTablesTool) Description() string {
	return "List the names of all tables available in the database."
}

func (t *listTablesTool) InputSchema() *llm.JSONSchema {
	return &llm.JSONSchema{Type: "object"}
}

func (t *listTablesTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	tables, err := t.db.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "No tables found.", nil
	}
	return strings.Join(tables, "\n"), nil
}

type describeTableTool struct {
	db Database
}

func (t *describeTableTool) Name() string { return "describe_table" }

func (t *describeTableTool) Description() string {
	return "Describe a table's columns: name, type, and comment."
}

func (t *describeTableTool) InputSchema() *llm.JSONSchema {
	return &llm.JSONSchema{
		Type: "object",
		Properties: map[string]*llm.JSONSchema{
			"table": {Type: "string", Description: "Name of the table to describe"},
		},
		Required: []string{"table"},
	}
}

func (t *describeTableTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	table, ok := params["table"].(string)
	if !ok || table == "" {
		return "", fmt.Errorf("missing required parameter: table")
	}

	schema, err := t.db.DescribeTable(ctx, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", schema.Name)
	for _, col := range schema.Columns {
		fmt.Fprintf(&b, "  %s %s", col.Name, col.Type)
		if col.Comment != "" {
			fmt.Fprintf(&b, " -- %s", col.Comment)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

type runQueryTool struct {
	db Database
}

func (t *runQueryTool) Name() string { return "run_query" }

func (t *runQueryTool) Description() string {
	return "Execute a single SELECT statement and return its rows as JSON."
}

func (t *runQueryTool) InputSchema() *llm.JSONSchema {
	return &llm.JSONSchema{
		Type: "object",
		Properties: map[string]*llm.JSONSchema{
			"sql": {Type: "string", Description: "The SELECT statement to execute"},
		},
		Required: []string{"sql"},
	}
}

func (t *runQueryTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	sql, ok := params["sql"].(string)
	if !ok || sql == "" {
		return "", fmt.Errorf("missing required parameter: sql")
	}

	result, err := t.db.RunQuery(ctx, sql)
	if err != nil {
		return "", err
	}

	if len(result.Rows) == 0 {
		return "Query returned no rows.", nil
	}

	rows, err := json.MarshalIndent(result.Rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode query result: %w", err)
	}
	return string(rows), nil
}

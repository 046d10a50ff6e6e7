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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/helix-data/quill/pkg/athena"
	"github.com/helix-data/quill/pkg/llm"
)

// scriptedProvider returns canned responses in order and records the
// conversations it was sent.
type scriptedProvider struct {
	responses []*llm.Response
	calls     [][]llm.Message
	err       error
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "test" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	p.calls = append(p.calls, messages)
	if p.err != nil {
		return nil, p.err
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// fakeDB backs the database tools without Athena.
type fakeDB struct {
	tables   []string
	schema   *athena.TableSchema
	result   *athena.QueryResult
	queryErr error
	lastSQL  string
}

func (f *fakeDB) ListTables(ctx context.Context) ([]string, error) { return f.tables, nil }

func (f *fakeDB) DescribeTable(ctx context.Context, table string) (*athena.TableSchema, error) {
	return f.schema, nil
}

func (f *fakeDB) RunQuery(ctx context.Context, sql string) (*athena.QueryResult, error) {
	f.lastSQL = sql
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.result, nil
}

func toolCall(id, name string, input map[string]interface{}) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Input: input}
}

func TestRun_DirectAnswer(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.Response{{Content: "I can answer that without SQL."}},
	}
	a := NewSQLAgent(provider, nil, Config{Logger: zaptest.NewLogger(t)})

	resp, err := a.Run(context.Background(), "what is this database for?")
	require.NoError(t, err)

	assert.Equal(t, "I can answer that without SQL.", resp.Answer)
	assert.Empty(t, resp.Query)
	require.Len(t, provider.calls, 1)
	assert.Equal(t, "system", provider.calls[0][0].Role)
	assert.Equal(t, "user", provider.calls[0][1].Role)
}

func TestRun_ToolLoopCapturesQuery(t *testing.T) {
	db := &fakeDB{
		tables: []string{"orders"},
		result: &athena.QueryResult{
			Columns: []string{"total"},
			Rows:    []map[string]string{{"total": "2000"}},
		},
	}
	provider := &scriptedProvider{
		responses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{toolCall("t1", "list_tables", nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("t2", "run_query", map[string]interface{}{
				"sql": "SELECT sum(amount) AS total FROM orders",
			})}},
			{Content: "Total sales are 2000."},
		},
	}
	a := NewSQLAgent(provider, DatabaseTools(db), Config{Logger: zaptest.NewLogger(t)})

	resp, err := a.Run(context.Background(), "what are total sales?")
	require.NoError(t, err)

	assert.Equal(t, "Total sales are 2000.", resp.Answer)
	assert.Equal(t, "SELECT sum(amount) AS total FROM orders", resp.Query)
	assert.Equal(t, "SELECT sum(amount) AS total FROM orders", db.lastSQL)

	// tool results flow back into the conversation
	require.Len(t, provider.calls, 3)
	last := provider.calls[2]
	assert.Equal(t, "tool", last[len(last)-1].Role)
	assert.Equal(t, "t2", last[len(last)-1].ToolUseID)
	assert.Contains(t, last[len(last)-1].Content, "2000")
}

func TestRun_ToolErrorFedBack(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("SYNTAX_ERROR: no such column")}
	provider := &scriptedProvider{
		responses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{toolCall("t1", "run_query", map[string]interface{}{
				"sql": "SELECT nope FROM orders",
			})}},
			{Content: "That column does not exist."},
		},
	}
	a := NewSQLAgent(provider, DatabaseTools(db), Config{Logger: zaptest.NewLogger(t)})

	resp, err := a.Run(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "That column does not exist.", resp.Answer)

	// the error text reached the model as a tool result
	last := provider.calls[1]
	assert.Contains(t, last[len(last)-1].Content, "SYNTAX_ERROR")
}

func TestRun_UnknownTool(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{toolCall("t1", "drop_database", nil)}},
			{Content: "Sorry."},
		},
	}
	a := NewSQLAgent(provider, nil, Config{Logger: zaptest.NewLogger(t)})

	_, err := a.Run(context.Background(), "question")
	require.NoError(t, err)

	last := provider.calls[1]
	assert.Contains(t, last[len(last)-1].Content, "unknown tool")
}

func TestRun_MaxStepsExceeded(t *testing.T) {
	loop := &llm.Response{ToolCalls: []llm.ToolCall{toolCall("t", "list_tables", nil)}}
	provider := &scriptedProvider{
		responses: []*llm.Response{loop, loop, loop},
	}
	a := NewSQLAgent(provider, DatabaseTools(&fakeDB{}), Config{
		MaxSteps: 3,
		Logger:   zaptest.NewLogger(t),
	})

	_, err := a.Run(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 steps")
}

func TestRun_ProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("ThrottlingException: rate exceeded")}
	a := NewSQLAgent(provider, nil, Config{Logger: zaptest.NewLogger(t)})

	_, err := a.Run(context.Background(), "question")
	require.Error(t, err)
	// the throttling marker must survive wrapping for the invoker to classify
	assert.Contains(t, err.Error(), "ThrottlingException")
}

func TestDatabaseTools_Describe(t *testing.T) {
	db := &fakeDB{
		schema: &athena.TableSchema{
			Name: "orders",
			Columns: []athena.Column{
				{Name: "id", Type: "bigint"},
				{Name: "amount", Type: "double", Comment: "USD"},
			},
		},
	}
	tools := DatabaseTools(db)

	var describe llm.Tool
	for _, tool := range tools {
		if tool.Name() == "describe_table" {
			describe = tool
		}
	}
	require.NotNil(t, describe)

	out, err := describe.Execute(context.Background(), map[string]interface{}{"table": "orders"})
	require.NoError(t, err)
	assert.Contains(t, out, "amount double")
	assert.Contains(t, out, "USD")

	_, err = describe.Execute(context.Background(), map[string]interface{}{})
	require.Error(t, err)
}

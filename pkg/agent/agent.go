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
// Package agent implements the SQL-generating agent: a conversational tool
// loop that turns a natural-language question into SQL, runs it, and answers
// from the result.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helix-data/quill/pkg/llm"
)

// Response is the agent's two-part result: the natural-language answer and,
// when the agent executed SQL to produce it, the last statement it ran.
type Response struct {
	// Answer is the agent's final textual answer
	Answer string

	// Query is the last SQL statement the agent executed, empty if none
	Query string
}

const defaultSystemPrompt = `You are a SQL analyst. Answer the user's question by querying the database.
Use list_tables and describe_table to learn the schema before writing SQL.
Use run_query to execute a single SELECT statement (Presto/Trino dialect).
After seeing the query result, answer the question concisely in plain language.`

// Config holds configuration for the SQL agent.
type Config struct {
	// MaxSteps bounds the number of model turns in one run. Default: 10.
	MaxSteps int

	// SystemPrompt overrides the built-in analyst prompt. Optional.
	SystemPrompt string

	// Logger for per-step events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// SQLAgent answers questions by driving a model through schema-discovery and
// query-execution tools.
type SQLAgent struct {
	provider llm.Provider
	tools    []llm.Tool
	cfg      Config
	logger   *zap.Logger
}

// NewSQLAgent creates a SQL agent over the given provider and tools.
func NewSQLAgent(provider llm.Provider, tools []llm.Tool, cfg Config) *SQLAgent {
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SQLAgent{provider: provider, tools: tools, cfg: cfg, logger: cfg.Logger}
}

// Run answers one question. The model may call tools across several turns;
// tool failures are fed back to the model as tool results so it can correct
// itself, while model failures are returned to the caller.
func (a *SQLAgent) Run(ctx context.Context, question string) (*Response, error) {
	messages := []llm.Message{
		{Role: "system", Content: a.cfg.SystemPrompt},
		{Role: "user", Content: question},
	}

	var lastQuery string

	for step := 0; step < a.cfg.MaxSteps; step++ {
		resp, err := a.provider.Chat(ctx, messages, a.tools)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			a.logger.Debug("agent run complete",
				zap.Int("steps", step+1),
				zap.Bool("ran_query", lastQuery != ""),
			)
			return &Response{Answer: resp.Content, Query: lastQuery}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if call.Name == "run_query" {
				if sql, ok := call.Input["sql"].(string); ok {
					lastQuery = sql
				}
			}

			output := a.executeTool(ctx, call)
			messages = append(messages, llm.Message{
				Role:      "tool",
				Content:   output,
				ToolUseID: call.ID,
			})
		}
	}

	return nil, fmt.Errorf("agent did not produce an answer within %d steps", a.cfg.MaxSteps)
}

// executeTool runs one tool call. Errors become the tool result text so the
// model sees what went wrong and can retry with a corrected call.
func (a *SQLAgent) executeTool(ctx context.Context, call llm.ToolCall) string {
	tool := a.findTool(call.Name)
	if tool == nil {
		a.logger.Warn("model requested unknown tool", zap.String("tool", call.Name))
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	a.logger.Debug("executing tool",
		zap.String("tool", call.Name),
		zap.Any("input", call.Input),
	)

	output, err := tool.Execute(ctx, call.Input)
	if err != nil {
		a.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}

func (a *SQLAgent) findTool(name string) llm.Tool {
	for _, tool := range a.tools {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}

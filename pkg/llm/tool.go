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
package llm

import "context"

// JSONSchema describes a tool's parameters.
type JSONSchema struct {
	Type        string
	Description string
	Properties  map[string]*JSONSchema
	Required    []string
	Enum        []string
}

// Tool is a capability the model can invoke during a conversation.
type Tool interface {
	// Name returns the tool's unique identifier
	Name() string

	// Description returns a human-readable description for model context
	Description() string

	// InputSchema returns the JSON Schema for tool parameters
	InputSchema() *JSONSchema

	// Execute runs the tool with given parameters and returns its
	// textual result, which is fed back to the model verbatim.
	Execute(ctx context.Context, params map[string]interface{}) (string, error)
}

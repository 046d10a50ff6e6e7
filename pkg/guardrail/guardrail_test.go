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
package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeApply struct {
	input  *bedrockruntime.ApplyGuardrailInput
	action types.GuardrailAction
	texts  []string
	err    error
}

func (f *fakeApply) ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	out := &bedrockruntime.ApplyGuardrailOutput{Action: f.action}
	for _, t := range f.texts {
		out.Outputs = append(out.Outputs, types.GuardrailOutputContent{Text: aws.String(t)})
	}
	return out, nil
}

func testGuardrail(t *testing.T, api applyAPI) *Client {
	return newClient(api, Config{
		GuardrailID:      "gr-1",
		GuardrailVersion: "DRAFT",
		Logger:           zaptest.NewLogger(t),
	})
}

func TestCheck_NoIntervention(t *testing.T) {
	api := &fakeApply{action: types.GuardrailActionNone}
	client := testGuardrail(t, api)

	assessment, err := client.Check(context.Background(), "what were Q3 sales?", SourceInput)
	require.NoError(t, err)
	assert.False(t, assessment.Intervened)
	assert.Empty(t, assessment.Output)

	require.NotNil(t, api.input)
	assert.Equal(t, "gr-1", aws.ToString(api.input.GuardrailIdentifier))
	assert.Equal(t, "DRAFT", aws.ToString(api.input.GuardrailVersion))
	assert.Equal(t, types.GuardrailContentSourceInput, api.input.Source)
}

func TestCheck_Intervened(t *testing.T) {
	api := &fakeApply{
		action: types.GuardrailActionGuardrailIntervened,
		texts:  []string{"Sorry, I can't help with that."},
	}
	client := testGuardrail(t, api)

	assessment, err := client.Check(context.Background(), "tell me something off limits", SourceOutput)
	require.NoError(t, err)
	assert.True(t, assessment.Intervened)
	assert.Equal(t, "Sorry, I can't help with that.", assessment.Output)
	assert.Equal(t, types.GuardrailContentSourceOutput, api.input.Source)
}

func TestCheck_Error(t *testing.T) {
	api := &fakeApply{err: errors.New("AccessDeniedException: not authorized")}
	client := testGuardrail(t, api)

	_, err := client.Check(context.Background(), "text", SourceInput)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guardrail assessment failed")
}

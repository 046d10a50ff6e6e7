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
package knowledgebase

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// Metadata filter builders for Retrieve and RetrieveAndGenerate. Filters match
// against the source metadata attached to ingested documents.

// Equals matches chunks whose metadata attribute key equals value.
func Equals(key string, value interface{}) runtimetypes.RetrievalFilter {
	return &runtimetypes.RetrievalFilterMemberEquals{
		Value: runtimetypes.FilterAttribute{
			Key:   aws.String(key),
			Value: document.NewLazyDocument(value),
		},
	}
}

// GreaterThan matches chunks whose metadata attribute key exceeds value.
func GreaterThan(key string, value interface{}) runtimetypes.RetrievalFilter {
	return &runtimetypes.RetrievalFilterMemberGreaterThan{
		Value: runtimetypes.FilterAttribute{
			Key:   aws.String(key),
			Value: document.NewLazyDocument(value),
		},
	}
}

// All requires every given filter to match.
func All(filters ...runtimetypes.RetrievalFilter) runtimetypes.RetrievalFilter {
	return &runtimetypes.RetrievalFilterMemberAndAll{Value: filters}
}

// Any requires at least one of the given filters to match.
func Any(filters ...runtimetypes.RetrievalFilter) runtimetypes.RetrievalFilter {
	return &runtimetypes.RetrievalFilterMemberOrAll{Value: filters}
}

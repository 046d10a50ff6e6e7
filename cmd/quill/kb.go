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
package main

import (
	"fmt"
	"strings"

	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helix-data/quill/internal/log"
	"github.com/helix-data/quill/pkg/knowledgebase"
)

var (
	kbTopK              int
	kbGenerate          bool
	kbSession           string
	kbFilters           []string
	kbIngestDescription string
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Work with a Bedrock knowledge base",
}

var kbIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Start an ingestion job and wait for it to finish",
	RunE:  runKBIngest,
}

var kbQueryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Query the knowledge base",
	Long: `Query retrieves the most relevant passages for a question. With --generate,
the configured model answers from the retrieved passages instead (and the
configured guardrail, if any, is applied to the answer).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKBQuery,
}

func init() {
	kbQueryCmd.Flags().IntVarP(&kbTopK, "top-k", "k", 5, "number of passages to retrieve")
	kbQueryCmd.Flags().BoolVarP(&kbGenerate, "generate", "g", false, "generate an answer from retrieved passages")
	kbQueryCmd.Flags().StringVar(&kbSession, "session", "", "continue a previous generate session")
	kbQueryCmd.Flags().StringSliceVar(&kbFilters, "filter", nil, "metadata filter, key=value (repeatable; all must match)")

	kbIngestCmd.Flags().StringVar(&kbIngestDescription, "description", "", "ingestion job description")

	kbCmd.AddCommand(kbIngestCmd)
	kbCmd.AddCommand(kbQueryCmd)
}

func newKBClient(cmd *cobra.Command) (*knowledgebase.Client, error) {
	kbID := viper.GetString("kb.id")
	if kbID == "" {
		return nil, fmt.Errorf("no knowledge base configured (set kb.id in config or QUILL_KB_ID)")
	}

	awsCfg, err := loadAWSConfig(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return knowledgebase.NewClient(awsCfg, knowledgebase.Config{
		KnowledgeBaseID:  kbID,
		DataSourceID:     viper.GetString("kb.data_source"),
		ModelARN:         viper.GetString("kb.model_arn"),
		GuardrailID:      viper.GetString("guardrail.id"),
		GuardrailVersion: viper.GetString("guardrail.version"),
		Logger:           log.Logger(),
	}), nil
}

func runKBIngest(cmd *cobra.Command, args []string) error {
	client, err := newKBClient(cmd)
	if err != nil {
		return err
	}

	jobID, err := client.StartIngestion(cmd.Context(), kbIngestDescription)
	if err != nil {
		return err
	}
	fmt.Printf("Ingestion job %s started, waiting...\n", jobID)

	stats, err := client.WaitForIngestion(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d scanned, %d indexed, %d failed\n",
		stats.Scanned, stats.Indexed, stats.Failed)
	return nil
}

func runKBQuery(cmd *cobra.Command, args []string) error {
	client, err := newKBClient(cmd)
	if err != nil {
		return err
	}
	question := strings.Join(args, " ")

	filter, err := parseFilters(kbFilters)
	if err != nil {
		return err
	}

	if kbGenerate {
		gen, err := client.RetrieveAndGenerate(cmd.Context(), question, kbSession, filter)
		if err != nil {
			return err
		}
		fmt.Println(gen.Answer)
		fmt.Printf("\nSession: %s\n", gen.SessionID)
		for _, src := range gen.Sources {
			if src.Location != "" {
				fmt.Printf("Source: %s\n", src.Location)
			}
		}
		return nil
	}

	passages, err := client.Retrieve(cmd.Context(), question, knowledgebase.RetrieveOptions{
		TopK:   kbTopK,
		Filter: filter,
	})
	if err != nil {
		return err
	}

	for i, p := range passages {
		fmt.Printf("[%d] score=%.3f %s\n%s\n\n", i+1, p.Score, p.Location, p.Text)
	}
	return nil
}

// parseFilters turns key=value pairs into a metadata filter; multiple pairs
// must all match.
func parseFilters(pairs []string) (runtimetypes.RetrievalFilter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filters := make([]runtimetypes.RetrievalFilter, 0, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters = append(filters, knowledgebase.Equals(key, value))
	}

	if len(filters) == 1 {
		return filters[0], nil
	}
	return knowledgebase.All(filters...), nil
}

package enrich

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/nyonlabs/showsync/helper"
)

// OpenAIEmbedder generates embeddings via an OpenAI compatible API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given model and expected
// dimensionality. An empty API key is a supported configuration; every
// Embed call then errors and the Enricher falls back.
func NewOpenAIEmbedder(apiKey string, embeddingModel openai.EmbeddingModel, dim int) *OpenAIEmbedder {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return &OpenAIEmbedder{
		client: client,
		model:  embeddingModel,
		dim:    dim,
	}
}

// Embed generates an embedding for the text. The result must match the
// configured dimensionality; a mismatch is an error so the comparability
// invariant of the vector column is never violated.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		return nil, helper.NewError("embed", fmt.Errorf("no API credential configured"))
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, helper.NewError("embed", err)
	}

	if len(resp.Data) == 0 {
		return nil, helper.NewError("embed", fmt.Errorf("no embedding returned"))
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != e.dim {
		return nil, helper.NewError("embed",
			fmt.Errorf("provider returned %d dimensions, expected %d", len(embedding), e.dim))
	}

	return embedding, nil
}

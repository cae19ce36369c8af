package enrich

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/nyonlabs/showsync/helper"
)

// LocalEmbedder generates embeddings with a local sentence transformer
// model. It needs no API credential and is an alternative to the API-backed
// embedder for offline setups. Note the all-MiniLM-L6-v2 default produces
// 384-dimensional vectors, so the pipeline must be configured accordingly.
type LocalEmbedder struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	dim      int
}

// NewLocalEmbedder downloads the model if needed and prepares the
// extraction pipeline.
func NewLocalEmbedder(modelName string, dim int) (*LocalEmbedder, error) {
	modelPath, err := prepareModel(modelName)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewError("create hugot session", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	extractionPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, helper.NewError("create extraction pipeline",
				fmt.Errorf("%w (cleanup error: %v)", err, destroyErr))
		}
		return nil, helper.NewError("create extraction pipeline", err)
	}

	return &LocalEmbedder{
		session:  session,
		pipeline: extractionPipeline,
		dim:      dim,
	}, nil
}

// Embed generates an embedding for the text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, helper.NewError("run extraction pipeline", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, helper.NewError("embed", fmt.Errorf("no embedding generated"))
	}

	embedding := result.Embeddings[0]
	if len(embedding) != e.dim {
		return nil, helper.NewError("embed",
			fmt.Errorf("model produced %d dimensions, expected %d", len(embedding), e.dim))
	}

	return embedding, nil
}

// Close destroys the hugot session.
func (e *LocalEmbedder) Close() error {
	return e.session.Destroy()
}

// prepareModel downloads the model if it doesn't exist and returns the model path
func prepareModel(modelName string) (string, error) {
	modelDir := "./models"
	modelPath := filepath.Join(modelDir, filepath.Base(modelName))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return "", helper.NewError("create model directory", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = "onnx/model.onnx"
		downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", helper.NewError("download model", err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}

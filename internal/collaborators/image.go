package collaborators

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIImageProvider generates and edits images via the OpenAI Images API.
// generate_images treats INFOGRAPHIC/DECORATIVE image types as
// provider calls through this seam; MERMAID/NONE never reach it.
type OpenAIImageProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIImageProvider builds a provider from an API key and default model.
func NewOpenAIImageProvider(apiKey, defaultModel string) *OpenAIImageProvider {
	if defaultModel == "" {
		defaultModel = "gpt-image-1"
	}
	return &OpenAIImageProvider{client: openai.NewClient(option.WithAPIKey(apiKey)), model: defaultModel}
}

// Generate produces a new image from req.Prompt.
func (p *OpenAIImageProvider) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(modelID),
		N:      openai.Int(1),
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("openai image generate: %w", err)
	}
	return decodeFirstImage(resp)
}

// Edit modifies req.SourceImage according to req.Prompt.
func (p *OpenAIImageProvider) Edit(ctx context.Context, req ImageRequest) (ImageResult, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	resp, err := p.client.Images.Edit(ctx, openai.ImageEditParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(modelID),
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.SourceImage), "source.png", "image/png"),
		},
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("openai image edit: %w", err)
	}
	return decodeFirstImage(resp)
}

func decodeFirstImage(resp *openai.ImagesResponse) (ImageResult, error) {
	if resp == nil || len(resp.Data) == 0 {
		return ImageResult{}, fmt.Errorf("openai image: empty response")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return ImageResult{}, fmt.Errorf("openai image: decode base64: %w", err)
	}
	return ImageResult{Bytes: raw, Format: "png"}, nil
}

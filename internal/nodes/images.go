package nodes

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goadesign/docgen-engine/internal/cache"
	"github.com/goadesign/docgen-engine/internal/collaborators"
	"github.com/goadesign/docgen-engine/internal/llm"
	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

const imageDecisionSystemPrompt = `Given a document section, decide whether it needs an illustrative image. Respond with JSON: {"image_type":"infographic|decorative|diagram|chart|mermaid|none","prompt":""}.`

type imageDecisionResponse struct {
	ImageType string `json:"image_type"`
	Prompt    string `json:"prompt"`
}

// imageGenerateTimeout is the hard ceiling on a single high-quality image
// call before falling back.
const imageGenerateTimeout = 180 * time.Second

// GenerateImages decides and produces one image per section, reusing a prior
// ImageManifest when its content hash and style match.
func GenerateImages(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		sections := parseSections(state.StructuredContent.Markdown)
		if len(sections) == 0 {
			sections = state.StructuredContent.Sections
		}
		style := state.Preferences["image_style"]

		if cached, ok, err := d.Cache.LoadImages(nc.Context(), state.SessionID, state.StructuredContent.ContentHash, style); err == nil && ok {
			state.StructuredContent.SectionImages = cached
			return state
		}

		images := make(map[int]model.SectionImage, len(sections))
		for _, sec := range sections {
			img, err := d.decideAndGenerateImage(nc, state, sec, style)
			if err != nil {
				// A failed section loses its image; the document renders
				// without it.
				nc.Logger().Error(nc.Context(), "generate_images: section failed", "section", sec.ID, "err", err)
				continue
			}
			images[sec.ID] = img
		}
		state.StructuredContent.SectionImages = images
		return state
	}
}

func (d *Deps) decideAndGenerateImage(nc *workflow.NodeContext, state *model.WorkflowState, sec model.Section, style string) (model.SectionImage, error) {
	resp, err := d.Gateway.Call(nc.Context(), llm.Request{
		Provider:     state.Provider,
		Model:        state.Model,
		SystemPrompt: imageDecisionSystemPrompt,
		UserPrompt:   fmt.Sprintf("Section %q:\n%s", sec.Title, sec.Content),
		JSONMode:     true,
		APIKey:       state.APIKeys[state.Provider],
		StepName:     "generate_images.decide",
	})
	if err != nil {
		return model.SectionImage{}, err
	}
	var decision imageDecisionResponse
	if err := llm.SafeJSONParse(resp.Text, &decision); err != nil {
		return model.SectionImage{}, err
	}

	imgType := model.ImageType(strings.ToLower(decision.ImageType))
	if style != "" {
		imgType = applyStyleOverride(imgType, style)
	}
	img := model.SectionImage{SectionID: sec.ID, SectionTitle: sec.Title, ImageType: imgType, Prompt: decision.Prompt}

	switch imgType {
	case model.ImageTypeMermaid, model.ImageTypeNone:
		return img, nil
	case model.ImageTypeInfographic:
		if !d.EnableInfographics {
			img.ImageType = model.ImageTypeNone
			return img, nil
		}
	case model.ImageTypeDecorative:
		if !d.EnableDecorativeHeaders {
			img.ImageType = model.ImageTypeNone
			return img, nil
		}
	case model.ImageTypeDiagram, model.ImageTypeChart:
		if !d.EnableDiagrams {
			img.ImageType = model.ImageTypeNone
			return img, nil
		}
	}

	path, err := d.generateSectionImage(nc.Context(), state, sec, decision.Prompt)
	if err != nil {
		return model.SectionImage{}, err
	}
	img.Path = path
	img.Attempts = 1
	return img, nil
}

// validImageStyleOverrides is the set of ImageType values a user-requested
// style preference may force a section's decided image_type to.
var validImageStyleOverrides = map[model.ImageType]bool{
	model.ImageTypeInfographic: true,
	model.ImageTypeDecorative:  true,
	model.ImageTypeDiagram:     true,
	model.ImageTypeChart:       true,
}

func applyStyleOverride(imgType model.ImageType, style string) model.ImageType {
	if imgType == model.ImageTypeNone || imgType == model.ImageTypeMermaid {
		return imgType
	}
	if t := model.ImageType(strings.ToLower(style)); validImageStyleOverrides[t] {
		return t
	}
	return imgType
}

func (d *Deps) generateSectionImage(ctx context.Context, state *model.WorkflowState, sec model.Section, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, imageGenerateTimeout)
	defer cancel()

	result, err := d.Images.Generate(timeoutCtx, collaborators.ImageRequest{Prompt: prompt, Model: state.ImageModel})
	if err != nil && d.GeminiImageFallbackModel != "" {
		fallbackCtx, cancel2 := context.WithTimeout(ctx, imageGenerateTimeout)
		defer cancel2()
		result, err = d.Images.Generate(fallbackCtx, collaborators.ImageRequest{Prompt: prompt, Model: d.GeminiImageFallbackModel})
	}
	if err != nil {
		return "", err
	}

	dir := filepath.Join(d.OutputRoot, "sessions", string(state.SessionID), "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := ".png"
	if result.Format == "jpeg" {
		ext = ".jpg"
	}
	name := cache.Slugify(sec.Title) + ext
	path := filepath.Join(dir, name)
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, result.Bytes, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

const describeImageSystemPrompt = `Describe this image in 2 to 4 sentences for a visually impaired reader.`

// DescribeImages fills in missing descriptions for section images. A real vision payload would attach the image bytes
// to the request; our Provider.Complete contract is text-only, so the
// section title, prompt, and image type stand in as the vision signal.
// Missing descriptions are logged, never fatal.
func DescribeImages(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		embed := state.Preferences["embed_images"] == "true"
		for id, img := range state.StructuredContent.SectionImages {
			if img.Path == "" {
				continue
			}
			if img.Description == "" {
				desc, err := d.Gateway.Call(nc.Context(), llm.Request{
					Provider:     state.Provider,
					Model:        state.Model,
					SystemPrompt: describeImageSystemPrompt,
					UserPrompt:   fmt.Sprintf("Section %q, image type %s, original prompt: %s", img.SectionTitle, img.ImageType, img.Prompt),
					APIKey:       state.APIKeys[state.Provider],
					StepName:     "describe_images",
				})
				if err != nil {
					nc.Logger().Error(nc.Context(), "describe_images: failed", "section", id, "err", err)
					continue
				}
				img.Description = desc.Text
			}
			if embed {
				raw, err := os.ReadFile(img.Path)
				if err == nil {
					img.EmbedBase64 = base64.StdEncoding.EncodeToString(raw)
				}
			}
			state.StructuredContent.SectionImages[id] = img
		}
		return state
	}
}

// PersistImageManifest writes the ImageManifest alongside image files,
// best-effort.
func PersistImageManifest(d *Deps) workflow.NodeFunc {
	return func(nc *workflow.NodeContext, state *model.WorkflowState) *model.WorkflowState {
		manifest := model.ImageManifest{
			ContentHash:  state.StructuredContent.ContentHash,
			ImageStyle:   state.Preferences["image_style"],
			Descriptions: map[int]string{},
			ImageTypes:   map[int]model.ImageType{},
		}
		for id, img := range state.StructuredContent.SectionImages {
			manifest.Sections = append(manifest.Sections, model.ImageManifestSection{ID: id, Title: img.SectionTitle})
			manifest.Descriptions[id] = img.Description
			manifest.ImageTypes[id] = img.ImageType
		}
		if err := d.Cache.SaveImageManifest(nc.Context(), state.SessionID, manifest); err != nil {
			nc.Logger().Error(nc.Context(), "persist_image_manifest: failed", "err", err)
		}
		return state
	}
}

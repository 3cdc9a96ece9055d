// Package workflows compiles the five branch topologies
// over the shared node set in internal/nodes: Document, Podcast, MindMap,
// FAQ, and ImageGenerate/ImageEdit. Compile selects the graph for a request's
// ArtifactKind once, up front; image kinds skip the ingest/summarize prefix entirely.
package workflows

import (
	"fmt"

	"github.com/goadesign/docgen-engine/internal/model"
	"github.com/goadesign/docgen-engine/internal/nodes"
	"github.com/goadesign/docgen-engine/internal/workflow"
)

// allNodes builds every node in the shared set, keyed by name, from d.
func allNodes(d *nodes.Deps) map[string]workflow.Node {
	named := func(name string, fn workflow.NodeFunc) workflow.Node { return workflow.Node{Name: name, Run: fn} }
	return map[string]workflow.Node{
		"ingest_sources":        named("ingest_sources", nodes.IngestSources(d)),
		"summarize_sources":     named("summarize_sources", nodes.SummarizeSources(d)),
		"detect_format":         named("detect_format", nodes.DetectFormat(d)),
		"parse_document_content": named("parse_document_content", nodes.ParseDocumentContent(d)),
		"transform_content":     named("transform_content", nodes.TransformContent(d)),
		"enhance_content":       named("enhance_content", nodes.EnhanceContent(d)),
		"generate_images":       named("generate_images", nodes.GenerateImages(d)),
		"describe_images":       named("describe_images", nodes.DescribeImages(d)),
		"persist_image_manifest": named("persist_image_manifest", nodes.PersistImageManifest(d)),
		"generate_output":       named("generate_output", nodes.GenerateOutput(d)),
		"validate_output":       named("validate_output", nodes.ValidateOutput(d)),
		"generate_podcast_script":   named("generate_podcast_script", nodes.GeneratePodcastScript(d)),
		"synthesize_podcast_audio":  named("synthesize_podcast_audio", nodes.SynthesizePodcastAudio(d)),
		"generate_mindmap": named("generate_mindmap", nodes.GenerateMindMap(d)),
		"generate_faq":     named("generate_faq", nodes.GenerateFAQ(d)),
		"image_generate":   named("image_generate", nodes.ImageGenerate(d)),
		"image_edit":       named("image_edit", nodes.ImageEdit(d)),
	}
}

var documentOrder = []string{
	"ingest_sources", "summarize_sources", "detect_format", "parse_document_content",
	"transform_content", "enhance_content", "generate_images", "describe_images",
	"persist_image_manifest", "generate_output", "validate_output",
}

var podcastOrder = []string{"ingest_sources", "summarize_sources", "generate_podcast_script", "synthesize_podcast_audio"}
var mindMapOrder = []string{"ingest_sources", "summarize_sources", "generate_mindmap"}
var faqOrder = []string{"ingest_sources", "summarize_sources", "generate_faq"}
var imageGenerateOrder = []string{"image_generate"}
var imageEditOrder = []string{"image_edit"}

// Compile builds the Graph for kind. The generate_output↔validate_output
// retry budget for document kinds comes from state.MaxRetries at run time.
func Compile(kind model.ArtifactKind, d *nodes.Deps) (*workflow.Graph, error) {
	n := allNodes(d)

	baseEdges := map[string]string{
		"detect_format":           "parse_document_content",
		"parse_document_content":  "transform_content",
		"transform_content":       "enhance_content",
		"enhance_content":         "generate_images",
		"generate_images":         "describe_images",
		"describe_images":         "persist_image_manifest",
		"persist_image_manifest":  "generate_output",
		"generate_output":         "validate_output",
		"validate_output":         workflow.Terminal,
		"generate_podcast_script": "synthesize_podcast_audio",
	}

	switch {
	case kind.IsDocumentKind():
		return &workflow.Graph{
			Name:      "document",
			Entry:     "ingest_sources",
			Nodes:     n,
			Order:     documentOrder,
			RetryFrom: "validate_output",
			RetryTo:   "generate_output",
			Edges: mergeEdges(baseEdges, map[string]string{
				"ingest_sources":    "summarize_sources",
				"summarize_sources": "detect_format",
			}),
		}, nil

	case kind == model.ArtifactPodcast:
		return &workflow.Graph{
			Name:  "podcast",
			Entry: "ingest_sources",
			Nodes: n,
			Order: podcastOrder,
			Edges: mergeEdges(baseEdges, map[string]string{
				"ingest_sources":           "summarize_sources",
				"summarize_sources":        "generate_podcast_script",
				"synthesize_podcast_audio": workflow.Terminal,
			}),
		}, nil

	case kind == model.ArtifactMindMap:
		return &workflow.Graph{
			Name:  "mindmap",
			Entry: "ingest_sources",
			Nodes: n,
			Order: mindMapOrder,
			Edges: map[string]string{
				"ingest_sources":    "summarize_sources",
				"summarize_sources": "generate_mindmap",
				"generate_mindmap":  workflow.Terminal,
			},
		}, nil

	case kind == model.ArtifactFAQ:
		return &workflow.Graph{
			Name:  "faq",
			Entry: "ingest_sources",
			Nodes: n,
			Order: faqOrder,
			Edges: map[string]string{
				"ingest_sources":    "summarize_sources",
				"summarize_sources": "generate_faq",
				"generate_faq":      workflow.Terminal,
			},
		}, nil

	case kind == model.ArtifactImageGenerate:
		return &workflow.Graph{
			Name:  "image_generate",
			Entry: "image_generate",
			Nodes: n,
			Order: imageGenerateOrder,
			Edges: map[string]string{"image_generate": workflow.Terminal},
		}, nil

	case kind == model.ArtifactImageEdit:
		return &workflow.Graph{
			Name:  "image_edit",
			Entry: "image_edit",
			Nodes: n,
			Order: imageEditOrder,
			Edges: map[string]string{"image_edit": workflow.Terminal},
		}, nil

	default:
		return nil, fmt.Errorf("workflows: no graph defined for artifact kind %q", kind)
	}
}

func mergeEdges(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

package clients

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultVisionModel = "gemini-1.5-pro"

var (
	geminiClientInstance *GeminiClient
	geminiOnce           sync.Once
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

// VisionImage is one fetched image, ready for a vision call.
type VisionImage struct {
	Data     []byte
	MIMEType string
}

func InitGemini(ctx context.Context) *GeminiClient {
	geminiOnce.Do(func() {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			slog.Error("[GeminiClient] Missing GEMINI_API_KEY in environment variables")
			panic("[GeminiClient] Missing GEMINI_API_KEY in environment variables")
		}

		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			panic(fmt.Errorf("[GeminiClient] failed to create Gemini client: %w", err))
		}

		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			model = defaultVisionModel
		}

		geminiClientInstance = &GeminiClient{client: client, model: model}
		slog.Info("[GeminiClient] Gemini vision client initialized", slog.String("model", model))
	})
	return geminiClientInstance
}

func GetGeminiClient() *GeminiClient {
	if geminiClientInstance == nil {
		panic("[GeminiClient] Error: Gemini client is not initialized")
	}
	return geminiClientInstance
}

func CloseGemini() {
	if geminiClientInstance != nil {
		geminiClientInstance.client.Close()
	}
}

// Observe sends a prompt plus images to the vision model and returns the raw
// text. The prompt contract forbids the model from scoring; callers parse
// the observation list out of the free text themselves.
func (c *GeminiClient) Observe(ctx context.Context, prompt string, images []VisionImage) (string, error) {
	model := c.client.GenerativeModel(c.model)

	parts := make([]genai.Part, 0, len(images)+1)
	parts = append(parts, genai.Text(prompt))
	for _, img := range images {
		parts = append(parts, genai.ImageData(imageFormat(img.MIMEType), img.Data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("[GeminiClient] vision call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("[GeminiClient] vision call returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("[GeminiClient] vision call returned empty response")
	}
	return sb.String(), nil
}

// imageFormat maps a content type to the bare format genai expects.
func imageFormat(mimeType string) string {
	if !strings.HasPrefix(mimeType, "image/") {
		return "jpeg"
	}
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" {
		return "jpeg"
	}
	return format
}

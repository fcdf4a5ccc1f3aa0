package chat

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

const defaultModel = "gemini-2.0-flash"

// systemInstruction steers the model toward travel planning replies and asks
// for a machine-readable place block so the map page can pick the
// recommendations up.
const systemInstruction = `당신은 한국 여행 일정을 짜주는 여행 플래너입니다.
사용자의 요청에 맞는 장소를 추천하고, 추천 장소가 있으면 답변 끝에 반드시
아래 형식의 JSON 코드 블록을 붙이세요.

` + "```json" + `
{"places": [{"name": "장소명", "address": "주소", "lat": 37.5, "lng": 127.0}]}
` + "```" + `

좌표는 실제 위치의 위도와 경도를 사용하세요.`

var _ AIGenerator = (*AIClient)(nil)

// AIGenerator is the model surface the chat service consumes, kept narrow so
// tests can substitute a canned generator.
type AIGenerator interface {
	GenerateReply(ctx context.Context, history []types.ChatMessage, message string) (string, error)
}

type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	ctx, span := otel.Tracer("ChatAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

// GenerateReply replays the stored conversation into a fresh chat and sends
// the new message. Sessions are stateless on the model side; the database is
// the source of truth for history.
func (ai *AIClient) GenerateReply(ctx context.Context, history []types.ChatMessage, message string) (string, error) {
	ctx, span := otel.Tracer("ChatAI").Start(ctx, "GenerateReply", trace.WithAttributes(
		attribute.String("model", ai.model),
		attribute.Int("history.length", len(history)),
	))
	defer span.End()

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Role == types.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	chat, err := ai.client.Chats.Create(ctx, ai.model, config, contents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat")
		return "", fmt.Errorf("failed to create chat: %w", err)
	}

	result, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		return "", err
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Message sent successfully")
	return responseText, nil
}

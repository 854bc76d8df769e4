package generator

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// responsePageSize is how many messages are fetched when reading a response.
// Only the newest one is used.
const responsePageSize = 5

// OpenAIClient implements AssistantAPI and ImageAPI with the official
// openai-go SDK (assistants beta + images).
type OpenAIClient struct {
	client openai.Client
}

func NewOpenAIClientFromSettings(cfg *Settings) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("assistant settings are nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}, nil
}

func (o *OpenAIClient) UpdateAssistant(ctx context.Context, assistantID, instructions, model string) error {
	_, err := o.client.Beta.Assistants.Update(ctx, assistantID, openai.BetaAssistantUpdateParams{
		Instructions: openai.String(instructions),
		Model:        openai.BetaAssistantUpdateParamsModel(model),
	})
	return err
}

func (o *OpenAIClient) CreateThread(ctx context.Context, prompt string) (string, error) {
	thread, err := o.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{
		Messages: []openai.BetaThreadNewParamsMessage{{
			Role:    "user",
			Content: openai.BetaThreadNewParamsMessageContentUnion{OfString: openai.String(prompt)},
		}},
	})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (o *OpenAIClient) AddMessage(ctx context.Context, threadID, content string) error {
	_, err := o.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role:    "user",
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(content)},
	})
	return err
}

func (o *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := o.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (o *OpenAIClient) ListRuns(ctx context.Context, threadID string) ([]Run, error) {
	page, err := o.client.Beta.Threads.Runs.List(ctx, threadID, openai.BetaThreadRunListParams{})
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(page.Data))
	for _, r := range page.Data {
		runs = append(runs, Run{ID: r.ID, Status: RunStatus(r.Status)})
	}
	return runs, nil
}

func (o *OpenAIClient) LatestMessage(ctx context.Context, threadID string) (string, error) {
	page, err := o.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Limit: openai.Int(responsePageSize),
	})
	if err != nil {
		return "", err
	}
	if len(page.Data) == 0 {
		return "", fmt.Errorf("thread %s has no messages: %w", threadID, ErrEmptyResponse)
	}
	msg := page.Data[0]
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("message %s has no content: %w", msg.ID, ErrEmptyResponse)
	}
	return msg.Content[0].Text.Value, nil
}

func (o *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		Size:   openai.ImageGenerateParamsSize(req.Size),
		N:      openai.Int(1),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai: empty image data")
	}
	return resp.Data[0].URL, nil
}

// Package google is an Inference Service adapter: it implements
// model.ChatModel and model.Embedder against Google's Gemini API,
// including grounded-search tool support for the Researcher's grounded
// call.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/evobeam/ebs-go/graph/model"
)

// ChatModel implements model.ChatModel against Gemini. A *SafetyFilterError
// returned by the client is passed through unchanged; the default client
// does not produce one from a blocked response.
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

type googleClient interface {
	generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel constructs a Gemini-backed ChatModel. An empty modelName
// defaults to gemini-2.5-flash.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	out, err := m.client.generateContent(ctx, messages, tools)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return model.ChatOut{}, safetyErr
		}
		return model.ChatOut{}, err
	}
	return out, nil
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: new client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages flattens the conversation into text parts. Gemini has
// no first-class system-message slot in this call shape, so a RoleSystem
// message is folded in as a leading text part rather than dropped.
func convertMessages(messages []model.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	return parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema recursively converts a JSON-Schema-shaped map (the shape
// every node's tool.Schema is authored in) into genai.Schema, including
// nested object properties and array item schemas.
func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}
	if typeStr, ok := schema["type"].(string); ok {
		result.Type = convertTypeString(typeStr)
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if propMap, ok := val.(map[string]interface{}); ok {
				properties[key] = convertSchema(propMap)
			}
		}
		result.Properties = properties
	}

	if items, ok := schema["items"].(map[string]interface{}); ok {
		result.Items = convertSchema(items)
	}

	result.Required = requiredStrings(schema["required"])
	return result
}

func requiredStrings(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}

func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError represents a Gemini safety-filter block. Use
// errors.As to recover the category a caller may want to log or retry
// around.
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string { return "content blocked by safety filter: " + e.category }

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string { return e.category }

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string { return e.reason }

// Embedder implements model.Embedder against Gemini's embedding models.
type Embedder struct {
	apiKey    string
	modelName string
}

// NewEmbedder constructs a Gemini-backed Embedder. An empty modelName
// defaults to text-embedding-004.
func NewEmbedder(apiKey, modelName string) *Embedder {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &Embedder{apiKey: apiKey, modelName: modelName}
}

// Embed implements model.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if e.apiKey == "" {
		return nil, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	defer client.Close()

	em := client.EmbeddingModel(e.modelName)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("google: embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, errors.New("google: embed: empty response")
	}

	vec := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vec[i] = float64(v)
	}
	return vec, nil
}

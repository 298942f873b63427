package google

import (
	"context"
	"errors"
	"testing"

	"github.com/evobeam/ebs-go/graph/model"
)

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("test-key", "")
	if m.modelName != "gemini-2.5-flash" {
		t.Errorf("expected default model name, got %q", m.modelName)
	}
}

func TestChatSendsMessagesAndReturnsResponse(t *testing.T) {
	mockClient := &mockGoogleClient{out: model.ChatOut{Text: "hello from gemini"}}
	m := &ChatModel{client: mockClient, modelName: "gemini-2.5-flash"}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hello from gemini" {
		t.Errorf("expected response text, got %q", out.Text)
	}
}

func TestChatTranslatesSafetyFilterErrors(t *testing.T) {
	safetyErr := &SafetyFilterError{reason: "blocked", category: "harassment"}
	m := &ChatModel{client: &mockGoogleClient{err: safetyErr}, modelName: "gemini-2.5-flash"}

	_, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	var translated *SafetyFilterError
	if !errors.As(err, &translated) {
		t.Fatalf("expected SafetyFilterError, got %T", err)
	}
	if translated.Category() != "harassment" {
		t.Errorf("expected category preserved, got %q", translated.Category())
	}
}

func TestChatRespectsContextCancellation(t *testing.T) {
	m := &ChatModel{client: &mockGoogleClient{out: model.ChatOut{Text: "x"}}, modelName: "gemini-2.5-flash"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConvertSchemaHandlesNestedProperties(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []interface{}{"tags"},
	}

	converted := convertSchema(schema)
	if converted.Type != convertTypeString("object") {
		t.Errorf("expected object type, got %v", converted.Type)
	}
	tagsSchema, ok := converted.Properties["tags"]
	if !ok {
		t.Fatal("expected a tags property")
	}
	if tagsSchema.Items == nil {
		t.Error("expected array items schema converted")
	}
	if len(converted.Required) != 1 || converted.Required[0] != "tags" {
		t.Errorf("expected required=[tags], got %v", converted.Required)
	}
}

func TestRequiredStringsHandlesBothRepresentations(t *testing.T) {
	if got := requiredStrings([]string{"a", "b"}); len(got) != 2 {
		t.Errorf("expected 2 strings, got %v", got)
	}
	if got := requiredStrings([]interface{}{"a", "b"}); len(got) != 2 {
		t.Errorf("expected 2 strings, got %v", got)
	}
}

func TestEmbedRejectsEmptyAPIKey(t *testing.T) {
	e := NewEmbedder("", "")
	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Error("expected an error for empty API key")
	}
}

func TestNewEmbedderDefaultsModelName(t *testing.T) {
	e := NewEmbedder("test-key", "")
	if e.modelName != "text-embedding-004" {
		t.Errorf("expected default embedding model, got %q", e.modelName)
	}
}

type mockGoogleClient struct {
	out model.ChatOut
	err error
}

func (m *mockGoogleClient) generateContent(_ context.Context, _ []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	if m.err != nil {
		return model.ChatOut{}, m.err
	}
	return m.out, nil
}

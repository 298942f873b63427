package kb

import (
	"context"
	"fmt"
)

// WriteExperienceTool exposes Archive.WriteExperience as a graph/tool.Tool
// so the Judge can call it directly from a provider tool-call. The
// Executor does not use this tool; it records synthesized branches through
// Archive.WriteStrategyArchive, bound as Deps.Archive.
type WriteExperienceTool struct {
	Archive *Archive
}

// NewWriteExperienceTool binds archive to a write_experience tool.
func NewWriteExperienceTool(archive *Archive) *WriteExperienceTool {
	return &WriteExperienceTool{Archive: archive}
}

// Name implements tool.Tool.
func (t *WriteExperienceTool) Name() string { return "write_experience" }

// Call implements tool.Tool. input must contain a non-empty "title" or
// "content" (at least one of the two);
// "type" and "tags" are optional and default to lesson_learned / none.
func (t *WriteExperienceTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	title, _ := input["title"].(string)
	content, _ := input["content"].(string)
	if title == "" && content == "" {
		return nil, fmt.Errorf("write_experience: title or content required")
	}

	typ := TypeLessonLearned
	if raw, ok := input["type"].(string); ok && raw != "" {
		typ = RecordType(raw)
	}

	var tags []string
	if raw, ok := input["tags"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	rec, err := t.Archive.WriteExperience(ctx, title, content, typ, tags, nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": rec.ID}, nil
}

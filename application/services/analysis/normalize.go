package analysis

import (
	"fmt"
	"strings"

	"canvas-backend/domain/core/entities"
)

// Field-name variants produced by different analyzers, in lookup order
var (
	colorKeys       = []string{"dominant_colors", "dominantColors", "colors", "color_palette", "palette"}
	moodKeys        = []string{"mood", "atmosphere", "emotional_tone", "tone"}
	visualStyleKeys = []string{"visual_style", "visualStyle", "style", "art_style"}
	lightingKeys    = []string{"lighting", "light", "lighting_style"}
	compositionKeys = []string{"composition", "layout", "framing"}
	hasTextKeys     = []string{"has_text", "hasText", "text_present", "contains_text"}
	promptKeys      = []string{"prompt_description", "promptDescription", "style_prompt", "description", "generation_prompt"}
)

// Normalize coalesces a raw style-analysis object into the fixed shape.
// Some analyzers nest the payload under "analysis" or "style_analysis".
func Normalize(raw map[string]interface{}) *entities.StyleAnalysis {
	if raw == nil {
		return &entities.StyleAnalysis{}
	}
	for _, wrapper := range []string{"analysis", "style_analysis", "styleAnalysis", "result"} {
		if inner, ok := raw[wrapper].(map[string]interface{}); ok {
			raw = inner
			break
		}
	}
	return &entities.StyleAnalysis{
		DominantColors:    stringList(first(raw, colorKeys)),
		Mood:              text(first(raw, moodKeys)),
		VisualStyle:       text(first(raw, visualStyleKeys)),
		Lighting:          text(first(raw, lightingKeys)),
		Composition:       text(first(raw, compositionKeys)),
		HasText:           boolean(first(raw, hasTextKeys)),
		PromptDescription: text(first(raw, promptKeys)),
	}
}

func first(raw map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		return strings.Join(stringList(t), ", ")
	case map[string]interface{}:
		for _, k := range []string{"description", "value", "name", "type"} {
			if s, ok := t[k].(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			var s string
			if m, ok := item.(map[string]interface{}); ok {
				for _, k := range []string{"hex", "color", "name", "value"} {
					if c, ok := m[k].(string); ok && c != "" {
						s = c
						break
					}
				}
			} else {
				s = text(item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func boolean(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

package ai

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// suggestionResponse is the JSON object the model must return.
type suggestionResponse struct {
	Category  string  `json:"category" jsonschema:"enum=Excited/Happy,enum=Calm/Content,enum=Sad/Melancholic,enum=Tense/Angry,enum=Neutral"`
	MoodScore float64 `json:"moodScore" jsonschema:"minimum=0,maximum=1"`
}

var suggestionSchema = generateSchema[suggestionResponse]()

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	// Strict structured output rejects meta keywords and optional properties.
	delete(m, "$schema")
	delete(m, "$id")
	m["additionalProperties"] = false
	if props, ok := m["properties"].(map[string]any); ok {
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		m["required"] = required
	}
	return m
}

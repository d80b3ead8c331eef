package llm

const (
	// Music specification variants
	VariantBasic    = "basic"
	VariantExtended = "extended"

	schemaTypeObject = "object"
	schemaTypeArray  = "array"
	schemaTypeString = "string"
	schemaTypeNumber = "number"
)

func stringArray(description string) map[string]any {
	return map[string]any{
		"type":        schemaTypeArray,
		"description": description,
		"items":       map[string]any{"type": schemaTypeString},
	}
}

func numberArray(description string) map[string]any {
	return map[string]any{
		"type":        schemaTypeArray,
		"description": description,
		"items":       map[string]any{"type": schemaTypeNumber},
	}
}

func field(kind, description string) map[string]any {
	return map[string]any{"type": kind, "description": description}
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 schemaTypeObject,
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// GetImageAnalysisSchema returns the JSON schema for the image analysis stage
func GetImageAnalysisSchema() map[string]any {
	return objectSchema(
		map[string]any{
			"dominantColors": stringArray("The dominant colors in the image."),
			"objects":        stringArray("The objects detected in the image."),
			"mood":           field(schemaTypeString, "The overall mood of the image."),
		},
		[]string{"dominantColors", "objects", "mood"},
	)
}

// GetMusicSpecificationSchema returns the JSON schema for the composition stage.
// The basic variant carries single tempo/key/time-signature values, the extended
// variant carries change sequences and a chord progression.
// OpenAI strict mode requires every property to be listed in 'required'.
func GetMusicSpecificationSchema(variant string) map[string]any {
	if variant == VariantBasic {
		return objectSchema(
			map[string]any{
				"tempo":             field(schemaTypeNumber, "The tempo of the music in BPM, between 20 and 400."),
				"key":               field(schemaTypeString, "The key of the music (e.g., C major, A minor)."),
				"timeSignature":     field(schemaTypeString, "The time signature of the music (e.g., 4/4, 3/4)."),
				"instruments":       stringArray("The instruments used in the music."),
				"notes":             stringArray("An array of musical notes for the melody."),
				"melodyDescription": field(schemaTypeString, "A description of the melody."),
			},
			[]string{"tempo", "key", "timeSignature", "instruments", "notes", "melodyDescription"},
		)
	}

	return objectSchema(
		map[string]any{
			"tempoChanges":         numberArray("Array of tempo changes in BPM, each between 20 and 400."),
			"keyChanges":           stringArray("Array of key changes (e.g., C major, A minor)."),
			"timeSignatureChanges": stringArray("Array of time signature changes (e.g., 4/4, 3/4)."),
			"instruments":          stringArray("The instruments used in the music."),
			"notes":                stringArray("An array of musical notes for the melody."),
			"melodyDescription":    field(schemaTypeString, "A description of the melody."),
			"chordProgression":     stringArray("An array of chords used in the music."),
		},
		[]string{
			"tempoChanges", "keyChanges", "timeSignatureChanges", "instruments",
			"notes", "melodyDescription", "chordProgression",
		},
	)
}

package contract

import (
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
)

const musicSpecificationName = "MusicSpecification"

// Decoder is what the composition stage needs from a music specification contract,
// whichever variant is in use
type Decoder interface {
	OutputSchema() *llm.OutputSchema
	DecodeSpecification(raw string) (*models.MusicSpecification, error)
}

type basicSpecPayload struct {
	Tempo             *float64 `json:"tempo" validate:"required,tempo"`
	Key               string   `json:"key" validate:"required"`
	TimeSignature     string   `json:"timeSignature" validate:"required,timesig"`
	Instruments       []string `json:"instruments" validate:"required,dive,required"`
	Notes             []string `json:"notes" validate:"required,dive,pitch"`
	MelodyDescription string   `json:"melodyDescription" validate:"required"`
}

type extendedSpecPayload struct {
	TempoChanges         []float64 `json:"tempoChanges" validate:"required,min=1,dive,tempo"`
	KeyChanges           []string  `json:"keyChanges" validate:"required,min=1,dive,required"`
	TimeSignatureChanges []string  `json:"timeSignatureChanges" validate:"required,min=1,dive,timesig"`
	Instruments          []string  `json:"instruments" validate:"required,dive,required"`
	Notes                []string  `json:"notes" validate:"required,dive,pitch"`
	MelodyDescription    string    `json:"melodyDescription" validate:"required"`
	ChordProgression     []string  `json:"chordProgression" validate:"required,dive,required"`
}

// A melody is required whenever instruments are named: the scheduler has nothing to play otherwise
func notesForInstruments(instruments, notes []string) *ViolationError {
	if len(instruments) > 0 && len(notes) == 0 {
		return &ViolationError{Field: "notes", Reason: "must not be empty when instruments are present"}
	}
	return nil
}

type specContract[W any] struct {
	*Contract[W, models.MusicSpecification]
}

func (c specContract[W]) DecodeSpecification(raw string) (*models.MusicSpecification, error) {
	return c.Decode(raw)
}

// MusicSpecification returns the contract for the composition stage.
// Unknown variants fall back to the extended one.
func MusicSpecification(variant string) Decoder {
	if variant == llm.VariantBasic {
		return specContract[basicSpecPayload]{BasicMusicSpecification()}
	}
	return specContract[extendedSpecPayload]{ExtendedMusicSpecification()}
}

// BasicMusicSpecification decodes single tempo/key/time-signature output into length-1 sequences
func BasicMusicSpecification() *Contract[basicSpecPayload, models.MusicSpecification] {
	return &Contract[basicSpecPayload, models.MusicSpecification]{
		Name:        musicSpecificationName,
		Description: "Tempo, key, time signature, instruments and melody derived from an image analysis",
		Schema:      llm.GetMusicSpecificationSchema(llm.VariantBasic),
		rules: []func(*basicSpecPayload) *ViolationError{
			func(p *basicSpecPayload) *ViolationError {
				return notesForInstruments(p.Instruments, p.Notes)
			},
		},
		normalise: func(p *basicSpecPayload) *models.MusicSpecification {
			return &models.MusicSpecification{
				Tempos:            []float64{*p.Tempo},
				Keys:              []string{p.Key},
				TimeSignatures:    []string{p.TimeSignature},
				Instruments:       p.Instruments,
				Notes:             p.Notes,
				MelodyDescription: p.MelodyDescription,
			}
		},
	}
}

// ExtendedMusicSpecification decodes output carrying change sequences and a chord progression
func ExtendedMusicSpecification() *Contract[extendedSpecPayload, models.MusicSpecification] {
	return &Contract[extendedSpecPayload, models.MusicSpecification]{
		Name:        musicSpecificationName,
		Description: "Tempo, key and time-signature changes, instruments, melody and chords derived from an image analysis",
		Schema:      llm.GetMusicSpecificationSchema(llm.VariantExtended),
		rules: []func(*extendedSpecPayload) *ViolationError{
			func(p *extendedSpecPayload) *ViolationError {
				return notesForInstruments(p.Instruments, p.Notes)
			},
		},
		normalise: func(p *extendedSpecPayload) *models.MusicSpecification {
			return &models.MusicSpecification{
				Tempos:            p.TempoChanges,
				Keys:              p.KeyChanges,
				TimeSignatures:    p.TimeSignatureChanges,
				Instruments:       p.Instruments,
				Notes:             p.Notes,
				MelodyDescription: p.MelodyDescription,
				ChordProgression:  p.ChordProgression,
			}
		},
	}
}

// ValidateSpecification checks an already-decoded specification, e.g. one
// supplied directly by a client rather than produced by the model
func ValidateSpecification(spec *models.MusicSpecification) error {
	if spec == nil {
		return &ViolationError{Contract: musicSpecificationName, Reason: "missing"}
	}
	payload := extendedSpecPayload{
		TempoChanges:         spec.Tempos,
		KeyChanges:           spec.Keys,
		TimeSignatureChanges: spec.TimeSignatures,
		Instruments:          spec.Instruments,
		Notes:                spec.Notes,
		MelodyDescription:    spec.MelodyDescription,
		ChordProgression:     spec.ChordProgression,
	}
	if payload.ChordProgression == nil {
		payload.ChordProgression = []string{}
	}

	c := ExtendedMusicSpecification()
	if err := validate().Struct(&payload); err != nil {
		return c.validationViolation(err)
	}
	if v := notesForInstruments(payload.Instruments, payload.Notes); v != nil {
		v.Contract = c.Name
		return v
	}
	return nil
}

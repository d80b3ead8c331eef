package contract

import (
	"strings"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
)

const imageAnalysisName = "ImageAnalysis"

// imageAnalysisPayload is the wire shape of the analysis stage output.
// objects may be empty but must be present.
type imageAnalysisPayload struct {
	DominantColors []string `json:"dominantColors" validate:"required,min=1,dive,required"`
	Objects        []string `json:"objects" validate:"required,dive,required"`
	Mood           string   `json:"mood" validate:"required"`
}

// ImageAnalysis returns the contract for the image analysis stage
func ImageAnalysis() *Contract[imageAnalysisPayload, models.ImageAnalysis] {
	return &Contract[imageAnalysisPayload, models.ImageAnalysis]{
		Name:        imageAnalysisName,
		Description: "Dominant colors, emotionally salient objects and overall mood of a photo",
		Schema:      llm.GetImageAnalysisSchema(),
		rules: []func(*imageAnalysisPayload) *ViolationError{
			func(p *imageAnalysisPayload) *ViolationError {
				if strings.TrimSpace(p.Mood) == "" {
					return &ViolationError{Field: "mood", Reason: "must not be blank"}
				}
				return nil
			},
		},
		normalise: func(p *imageAnalysisPayload) *models.ImageAnalysis {
			return &models.ImageAnalysis{
				DominantColors: p.DominantColors,
				Objects:        p.Objects,
				Mood:           p.Mood,
			}
		},
	}
}

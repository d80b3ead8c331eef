package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/coordination"
	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/spf13/cobra"
)

type compositionFlags struct {
	style    string
	lighting string
}

func (f *compositionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.style, "style", "", "Musical style hint, e.g. ambient")
	cmd.Flags().StringVar(&f.lighting, "lighting", "", "Lighting hint, e.g. golden hour")
}

func (f *compositionFlags) request(photoURL string) coordination.Request {
	return coordination.Request{PhotoURL: photoURL, Style: f.style, Lighting: f.lighting}
}

func newComposeCommand(cfg *config.Config) *cobra.Command {
	var flags compositionFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compose <photo-url>",
		Short: "Analyze a photo and print its music specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flush := initSentry(cfg)
			defer flush()

			pipeline, err := newPipeline(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			result, err := pipeline.RunStream(cmd.Context(), flags.request(args[0]), func(event coordination.StreamEvent) error {
				if event.Type == coordination.EventProgress {
					fmt.Fprintln(stderr, event.Message)
				}
				return nil
			})
			if result != nil && result.Analysis != nil && !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), renderAnalysis(result.Analysis))
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSpecification(result.Specification))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func renderAnalysis(a *models.ImageAnalysis) string {
	return renderTable(
		[]string{"Analysis", "Value"},
		[][]string{
			{"Mood", a.Mood},
			{"Dominant colors", strings.Join(a.DominantColors, ", ")},
			{"Objects", strings.Join(a.Objects, ", ")},
		},
		nil,
	)
}

func renderSpecification(spec *models.MusicSpecification) string {
	tempos := make([]string, len(spec.Tempos))
	for i, bpm := range spec.Tempos {
		tempos[i] = fmt.Sprintf("%g", bpm)
	}

	return renderTable(
		[]string{"Music", "Value"},
		[][]string{
			{"Tempo (BPM)", strings.Join(tempos, " → ")},
			{"Key", strings.Join(spec.Keys, " → ")},
			{"Time signature", strings.Join(spec.TimeSignatures, " → ")},
			{"Instruments", strings.Join(spec.Instruments, ", ")},
			{"Notes", strings.Join(spec.Notes, " ")},
			{"Chords", strings.Join(spec.ChordProgression, " ")},
			{"Melody", spec.MelodyDescription},
		},
		nil,
	)
}

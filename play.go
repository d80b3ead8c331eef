package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/audio"
	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/Conceptual-Machines/algorhythm-api/internal/playback"
	"github.com/spf13/cobra"
)

const (
	outputMIDI = "midi"
	outputPCM  = "pcm"
	stdoutSink = "-"

	defaultSampleRate = 44100
	progressInterval  = 50 * time.Millisecond
)

type playFlags struct {
	compositionFlags
	specPath   string
	output     string
	device     string
	loops      int
	tempo      float64
	volume     float64
	sampleRate int
	channel    uint8
}

func newPlayCommand(cfg *config.Config) *cobra.Command {
	var flags playFlags

	cmd := &cobra.Command{
		Use:   "play [photo-url]",
		Short: "Compose from a photo (or load a specification) and play the melody live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.specPath == "" && len(args) == 0 {
				return errors.New("a photo URL or --spec is required")
			}
			if flags.loops < 1 {
				return errors.New("--loops must be at least 1")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			spec, err := loadSpecification(ctx, cfg, &flags, args)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("tempo") {
				flags.tempo = 0
			}
			if !cmd.Flags().Changed("volume") {
				flags.volume = cfg.DefaultVolume
			}
			return play(ctx, cmd.OutOrStdout(), spec, &flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.specPath, "spec", "", "Play a music specification JSON file instead of composing")
	cmd.Flags().StringVarP(&flags.output, "output", "o", outputMIDI, "Output kind: midi (live MIDI byte stream) or pcm (live float32 LE mono)")
	cmd.Flags().StringVar(&flags.device, "device", stdoutSink, "Existing MIDI device node or FIFO to stream to, - for stdout")
	cmd.Flags().IntVar(&flags.loops, "loops", 1, "Times to play the melody")
	cmd.Flags().Float64Var(&flags.tempo, "tempo", 0, "Override the specification tempo (BPM)")
	cmd.Flags().Float64Var(&flags.volume, "volume", playback.DefaultVolume, "Volume 0-100")
	cmd.Flags().IntVar(&flags.sampleRate, "sample-rate", defaultSampleRate, "PCM sample rate")
	cmd.Flags().Uint8Var(&flags.channel, "channel", 0, "MIDI channel 0-15")
	return cmd
}

func loadSpecification(ctx context.Context, cfg *config.Config, flags *playFlags, args []string) (*models.MusicSpecification, error) {
	if flags.specPath != "" {
		data, err := os.ReadFile(flags.specPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read specification: %w", err)
		}
		var spec models.MusicSpecification
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("failed to parse specification: %w", err)
		}
		return &spec, nil
	}

	flush := initSentry(cfg)
	defer flush()

	pipeline, err := newPipeline(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	result, err := pipeline.Run(ctx, flags.request(args[0]))
	if err != nil {
		return nil, err
	}
	return result.Specification, nil
}

// openOutput creates the requested live output; the returned func closes the device.
// Devices are never created, so nothing is left behind on disk.
func openOutput(flags *playFlags, stdout io.Writer) (audio.Output, func() error, error) {
	if flags.output != outputMIDI && flags.output != outputPCM {
		return nil, nil, fmt.Errorf("unknown output %q (want midi or pcm)", flags.output)
	}

	w := stdout
	closeFn := func() error { return nil }
	if flags.device != stdoutSink {
		f, err := os.OpenFile(flags.device, os.O_WRONLY, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open device: %w", err)
		}
		w, closeFn = f, f.Close
	}

	if flags.output == outputPCM {
		return audio.NewSynthOutput(w, flags.sampleRate), closeFn, nil
	}
	return audio.NewMIDIOutput(w, flags.channel), closeFn, nil
}

func play(ctx context.Context, stdout io.Writer, spec *models.MusicSpecification, flags *playFlags) error {
	output, closeOutput, err := openOutput(flags, os.Stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	scheduler := playback.NewScheduler(output, playback.WithLoop(flags.loops > 1))
	if err := scheduler.AttachSpecification(spec); err != nil {
		return err
	}
	if flags.tempo != 0 {
		if err := scheduler.SetTempo(flags.tempo); err != nil {
			return err
		}
	}
	if err := scheduler.SetVolume(flags.volume); err != nil {
		return err
	}

	target := int64(flags.loops * len(spec.Notes))
	log.Printf("▶️  Playing %d notes at %.0f BPM", target, scheduler.Snapshot().CurrentTempo)

	started := time.Now()
	if err := scheduler.Play(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️  Playback interrupted")
			break wait
		case <-ticker.C:
			session := scheduler.Snapshot()
			if session.NotesFired >= target || session.TransportState == playback.StateStopped {
				// Let the last note ring for its full step
				time.Sleep(playback.IntervalFor(session.CurrentTempo))
				break wait
			}
		}
	}

	session := scheduler.Snapshot()
	if err := scheduler.Dispose(); err != nil {
		return err
	}

	rows := [][]string{
		{"Notes fired", strconv.FormatInt(session.NotesFired, 10)},
		{"Tempo (BPM)", fmt.Sprintf("%g", session.CurrentTempo)},
		{"Volume", fmt.Sprintf("%g (%.1f dB)", session.CurrentVolume, audio.DecibelsFromLevel(session.CurrentVolume))},
		{"Duration", time.Since(started).Round(time.Millisecond).String()},
		{"Output", fmt.Sprintf("%s → %s", flags.output, flags.device)},
	}
	if synth, ok := output.(*audio.SynthOutput); ok {
		rows = append(rows, []string{"PCM frames", strconv.FormatInt(synth.Frames(), 10)})
	}
	if flags.device != stdoutSink {
		fmt.Fprintln(stdout, renderTable([]string{"Playback", ""}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	return nil
}

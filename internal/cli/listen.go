package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"home-dispatch/internal/application"
	"home-dispatch/internal/infra/audio"
)

func (a *App) newListenCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the voice listener (file drop directory or microphone)",
		Long: `Run the voice listener. The "file" source watches audio.file_dir for
recordings (.wav, .mp3, .m4a, .webm, .ogg) and text commands (.txt).
The "microphone" source needs a build with -tags portaudio.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			if source != "" {
				rt.cfg.Audio.Source = source
			}

			listener := application.NewListener(a.audioSource(rt), rt.stt, rt.dispatcher, rt.cfg.SessionHistory(), rt.logger)
			listener.OnResult(func(res *application.Result) {
				fmt.Fprintf(a.stdout, "> %s\n%s\n\n%s\n\n", res.Input, res.Response(), res.Status)
			})

			err = listener.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Audio source: file or microphone (overrides audio.source)")

	return cmd
}

func (a *App) audioSource(rt *runtime) application.AudioSource {
	switch rt.cfg.Audio.Source {
	case "microphone":
		return audio.NewMicrophoneSource(rt.cfg.Audio.SampleRate, rt.logger)
	case "file":
		return audio.NewFileSource(rt.cfg.Audio.FileDir)
	default:
		rt.logger.Warn("unknown audio source, using file", "source", rt.cfg.Audio.Source)
		return audio.NewFileSource(rt.cfg.Audio.FileDir)
	}
}

package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/ancpanel/pkg/ancapi"
	"github.com/haivivi/ancpanel/pkg/cli"
)

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "One-shot audio requests",
	Long: `Send audio to the backend for processing, classification or emergency
detection.

The request body comes from -f or --data. With --audio, the file's bytes are
base64-encoded into the body's audio_data field.

Examples:
  ancpanel audio classify --audio clip.raw
  ancpanel audio process -f process.yaml --audio clip.raw
  ancpanel audio detect --data '{"audio_data":"..."}'`,
}

type audioCall func(c *ancapi.Client, ctx context.Context, body any) (json.RawMessage, error)

func newAudioCmd(use, short string, call audioCall) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			body, err := requestBody(data)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("audio"); path != "" {
				audio, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read audio: %w", err)
				}
				body["audio_data"] = base64.StdEncoding.EncodeToString(audio)
				slog.Debug("audio loaded", "file", path, "size", cli.FormatBytes(len(audio)))
			}

			api, err := newAPIClient()
			if err != nil {
				return err
			}

			res, err := call(api, cmd.Context(), body)
			if err != nil {
				return err
			}
			return outputResult(res)
		},
	}
	cmd.Flags().String("data", "", "inline JSON request body")
	cmd.Flags().String("audio", "", "audio file to embed as audio_data")
	return cmd
}

func init() {
	audioCmd.AddCommand(newAudioCmd("process", "Run noise cancellation on audio", (*ancapi.Client).ProcessAudio))
	audioCmd.AddCommand(newAudioCmd("classify", "Classify the noise in audio", (*ancapi.Client).ClassifyNoise))
	audioCmd.AddCommand(newAudioCmd("detect", "Detect emergency sounds in audio", (*ancapi.Client).DetectEmergency))
}

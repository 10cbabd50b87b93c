package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BilalWohlig/labelwipe/internal/pipeline"
	"github.com/BilalWohlig/labelwipe/internal/storage"
)

// processCmd runs the workflow once against a local image file.
var processCmd = &cobra.Command{
	Use:   "process <image>",
	Short: "Run the masking workflow on a local image",
	Long: `Run the full detection/masking/inpainting workflow against a local image
file, writing the artifacts next to the input.

Examples:
  labelwipe process photo.jpg
  labelwipe process photo.jpg --padding 8 --no-mask`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		imagePath := args[0]
		dir := filepath.Dir(imagePath)

		padding := cfg.Pipeline.Padding
		if cmd.Flags().Changed("padding") {
			padding, _ = cmd.Flags().GetInt("padding")
		}
		prompt, _ := cmd.Flags().GetString("prompt")
		noMask, _ := cmd.Flags().GetBool("no-mask")
		noHighlight, _ := cmd.Flags().GetBool("no-highlight")

		store, err := storage.NewDirStore(dir)
		if err != nil {
			return err
		}

		ctx := context.Background()
		workflow, cleanup, err := buildWorkflow(ctx, cfg, store)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := workflow.Run(ctx, pipeline.Request{
			InputFileName:     filepath.Base(imagePath),
			InpaintPrompt:     prompt,
			Padding:           padding,
			ReturnMask:        !noMask,
			ReturnHighlighted: !noHighlight,
		}, func(step string) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", step)
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Detected %d field(s), strategy %s\n", len(res.AutoDetectedFields), res.MaskingStrategy)
		for _, f := range res.AutoDetectedFields {
			fmt.Fprintf(out, "  %-20s %-10s %q\n", f.FieldType, f.Distance, f.CompleteText)
		}
		fmt.Fprintln(out, "Artifacts:")
		for _, of := range res.OutputFiles {
			fmt.Fprintf(out, "  %-12s %s\n", of.Type, of.URL)
		}
		fmt.Fprintf(out, "Done in %dms\n", res.ProcessingTimeMs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().Int("padding", 5, "pixel padding around masked boxes")
	processCmd.Flags().String("prompt", "", "override the inpainting prompt")
	processCmd.Flags().Bool("no-mask", false, "do not write the mask artifact")
	processCmd.Flags().Bool("no-highlight", false, "do not write the highlight artifact")
}

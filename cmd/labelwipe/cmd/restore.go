package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BilalWohlig/labelwipe/internal/restore"
)

// restoreCmd recombines original detail into an inpainted image locally.
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore original detail outside the masked region",
	Long: `Recombine an original image with an inpainted rendition using the mask
that drove the inpainting, feathering the boundary. All three images must
share pixel dimensions.

Examples:
  labelwipe restore --original o.png --mask m.png --inpainted i.png -o restored.png
  labelwipe restore --original o.png --mask m.png --inpainted i.png --feather-radius 4 --blend-mode linear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		originalPath, _ := cmd.Flags().GetString("original")
		maskPath, _ := cmd.Flags().GetString("mask")
		inpaintedPath, _ := cmd.Flags().GetString("inpainted")
		outputPath, _ := cmd.Flags().GetString("output")

		featherRadius, _ := cmd.Flags().GetInt("feather-radius")
		if featherRadius < 0 {
			return fmt.Errorf("feather-radius must not be negative")
		}
		blendMode, err := restore.ParseBlendMode(mustString(cmd, "blend-mode"))
		if err != nil {
			return err
		}
		maskChannel, err := restore.ParseMaskChannel(mustString(cmd, "mask-channel"))
		if err != nil {
			return err
		}

		original, err := os.ReadFile(originalPath)
		if err != nil {
			return fmt.Errorf("failed to read original: %w", err)
		}
		mask, err := os.ReadFile(maskPath)
		if err != nil {
			return fmt.Errorf("failed to read mask: %w", err)
		}
		inpainted, err := os.ReadFile(inpaintedPath)
		if err != nil {
			return fmt.Errorf("failed to read inpainted: %w", err)
		}

		restored, err := restore.Restore(original, mask, inpainted, restore.Options{
			FeatherRadius: featherRadius,
			BlendMode:     blendMode,
			MaskChannel:   maskChannel,
		})
		if err != nil {
			return err
		}

		if err := os.WriteFile(outputPath, restored, 0o600); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outputPath, len(restored))
		return nil
	},
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().String("original", "", "original image file")
	restoreCmd.Flags().String("mask", "", "mask image file")
	restoreCmd.Flags().String("inpainted", "", "inpainted image file")
	restoreCmd.Flags().StringP("output", "o", "restored.png", "output file")
	restoreCmd.Flags().Int("feather-radius", 2, "feather radius in pixels")
	restoreCmd.Flags().String("blend-mode", "smooth", "blend mode: linear or smooth")
	restoreCmd.Flags().String("mask-channel", "auto", "mask channel: red, green, blue, alpha or auto")
	_ = restoreCmd.MarkFlagRequired("original")
	_ = restoreCmd.MarkFlagRequired("mask")
	_ = restoreCmd.MarkFlagRequired("inpainted")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/imaging"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <image-path>",
	Short: "Print an image file as base64",
	Long: `Print an image file as a base64 string suitable for the image_base64
and image_base64_to_check request fields. Useful for manual testing.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().Bool("data-uri", false, "Prefix the output with a data:<mime>;base64, header")
}

func runEncode(cmd *cobra.Command, args []string) error {
	dataURI := mustGetBool(cmd, "data-uri")

	out, err := imaging.EncodeFileBase64(args[0], dataURI)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

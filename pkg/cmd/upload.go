package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugkit/plugkit/pkg/fetch"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <tarball> <s3-url>",
		Short: "Upload a package tarball to S3",
		Long: "Uploads a packed npm tarball to an s3:// URL so it can be " +
			"referenced from a plugin set.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, objectURL := args[0], args[1]

			fetcher, err := fetch.NewS3(cmd.Context())
			if err != nil {
				return err
			}
			if err := fetcher.Upload(cmd.Context(), src, objectURL); err != nil {
				return fmt.Errorf("uploading %s: %w", src, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", src, objectURL)
			return nil
		},
	}
}

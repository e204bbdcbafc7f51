package main

import (
	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/artifacts"
)

var (
	bundleOutput     string
	bundleAccountURL string
	bundleContainer  string
	bundleBlobName   string
)

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle <output-dir>",
		Short: "Archive a run's output directory, optionally uploading it",
		Long: `Bundle packs an output directory (scenario outputs, manifest, results,
transcripts) into a gzipped tar archive. With --account-url and --container
the archive is also uploaded to Azure Blob Storage using the default
credential chain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := bundleOutput
			if out == "" {
				out = args[0] + ".tar.gz"
			}

			if err := artifacts.Bundle(args[0], out); err != nil {
				return err
			}
			cmd.Printf("Bundled %s into %s\n", args[0], out)

			if bundleAccountURL == "" {
				return nil
			}

			uploader, err := artifacts.NewBlobUploader(bundleAccountURL, bundleContainer)
			if err != nil {
				return err
			}
			if err := uploader.Upload(cmd.Context(), out, bundleBlobName); err != nil {
				return err
			}
			cmd.Printf("Uploaded %s to container %s\n", out, bundleContainer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&bundleOutput, "output", "o", "", "Archive path (default <output-dir>.tar.gz)")
	cmd.Flags().StringVar(&bundleAccountURL, "account-url", "", "Azure storage account URL to upload the archive to")
	cmd.Flags().StringVar(&bundleContainer, "container", "interllm-runs", "Blob container for the upload")
	cmd.Flags().StringVar(&bundleBlobName, "blob-name", "", "Blob name for the upload (default archive base name)")

	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/models"
)

// Pipeline is the part of the extraction service the CLI drives.
type Pipeline interface {
	ExtractProduct(ctx context.Context, url string) (*models.CanonicalProduct, error)
	ScrapeImages(ctx context.Context, url string) ([]models.ExtractedImage, error)
	BuildArchive(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error)
}

// pipelineFactory builds the pipeline once flags are parsed. The returned
// func releases its resources.
type pipelineFactory func(ctx context.Context, verbose bool) (Pipeline, func(), error)

func newRootCmd(factory pipelineFactory) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "extract",
		Short:         "Extract product data and images from marketplace pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log fetch attempts and tier decisions to stderr")

	run := func(fn func(ctx context.Context, p Pipeline, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			p, release, err := factory(cmd.Context(), verbose)
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd.Context(), p, cmd.OutOrStdout())
		}
	}

	root.AddCommand(
		newProductCmd(run),
		newImagesCmd(run),
		newArchiveCmd(run),
	)

	return root
}

type runner func(fn func(ctx context.Context, p Pipeline, out io.Writer) error) func(*cobra.Command, []string) error

func newProductCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product <url>",
		Short: "Extract the normalized product record as JSON",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(func(ctx context.Context, p Pipeline, out io.Writer) error {
			product, err := p.ExtractProduct(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, product)
		})(c, args)
	}
	return cmd
}

func newImagesCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images <url>",
		Short: "List the catalogued images of a page as JSON",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(func(ctx context.Context, p Pipeline, out io.Writer) error {
			images, err := p.ScrapeImages(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, images)
		})(c, args)
	}
	return cmd
}

func newArchiveCmd(run runner) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "archive <url>",
		Short: "Download the page images into a ZIP archive",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "product-images.zip", "Archive file to write")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keep only the first N images (0 keeps all)")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		if limit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}
		return run(func(ctx context.Context, p Pipeline, out io.Writer) error {
			images, err := p.ScrapeImages(ctx, args[0])
			if err != nil {
				return err
			}
			if limit > 0 && len(images) > limit {
				images = images[:limit]
			}

			result, err := p.BuildArchive(ctx, images)
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, result.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}

			fmt.Fprintf(out, "wrote %s: %d files, %d failed\n", output, len(result.Filenames), result.Failed)
			return nil
		})(c, args)
	}
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

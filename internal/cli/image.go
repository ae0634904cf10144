package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/store"
)

// ImageOptions holds flags for the image commands.
type ImageOptions struct {
	*RootOptions
	Type string
}

// NewImageCommand creates the image command group.
func NewImageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage customer images",
	}
	cmd.AddCommand(newImageAddCommand(rootOpts))
	cmd.AddCommand(newImageListCommand(rootOpts))
	return cmd
}

func newImageAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImageOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add <customer-id> <file...>",
		Short: "Attach image files to a customer",
		Long: `Attach image files to a customer in one unit. The MIME type is detected
from the content unless --type is given.

Example:
  clientbook image add 1 before.jpg after.jpg`,
		Args: minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			custID, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			uploads := make([]store.ImageUpload, 0, len(args)-1)
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", path), err)
				}
				uploads = append(uploads, store.ImageUpload{Name: filepath.Base(path), Type: opts.Type, Data: data})
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				ids, err := s.eng.Store().AddImages(ctx, custID, uploads)
				if err != nil {
					return err
				}
				return s.out.Success(map[string][]int64{"added": ids})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "MIME type for every file (default: detected)")
	return cmd
}

// ImageSummary is an image without its content.
type ImageSummary struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customerId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Bytes      int    `json:"bytes"`
}

func newImageListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <customer-id>",
		Short: "List a customer's images",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custID, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				images, err := s.eng.Store().ImagesByCustomer(ctx, custID)
				if err != nil {
					return err
				}
				out := make([]ImageSummary, 0, len(images))
				for _, img := range images {
					sum := ImageSummary{ID: img.ID, CustomerID: img.CustomerID, Name: img.Name, Type: img.Type, Bytes: -1}
					if data, _, err := img.Content(); err == nil {
						sum.Bytes = len(data)
					}
					out = append(out, sum)
				}
				return s.out.Success(out)
			})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/store"
)

// NoteOptions holds flags for the note commands.
type NoteOptions struct {
	*RootOptions
	CustomerID int64
	SVG        string
	SVGFile    string
	Date       string
}

// NewNoteCommand creates the note command group.
func NewNoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Manage a customer's drawn notes",
	}
	cmd.AddCommand(newNoteAddCommand(rootOpts))
	cmd.AddCommand(newNoteEditCommand(rootOpts))
	cmd.AddCommand(newNoteUndoCommand(rootOpts))
	cmd.AddCommand(newNoteShowCommand(rootOpts))
	cmd.AddCommand(newNoteListCommand(rootOpts))
	cmd.AddCommand(newNoteDeleteCommand(rootOpts))
	return cmd
}

func noteContentFlags(cmd *cobra.Command, opts *NoteOptions) {
	cmd.Flags().StringVar(&opts.SVG, "svg", "", "note content as SVG markup")
	cmd.Flags().StringVar(&opts.SVGFile, "svg-file", "", "read note content from a file")
	cmd.Flags().StringVar(&opts.Date, "date", "", "note date (normalized to YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("svg", "svg-file")
}

// content returns the SVG given by --svg or --svg-file.
func (o *NoteOptions) content() (string, bool, error) {
	switch {
	case o.SVGFile != "":
		data, err := os.ReadFile(o.SVGFile)
		if err != nil {
			return "", false, WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", o.SVGFile), err)
		}
		return string(data), true, nil
	case o.SVG != "":
		return o.SVG, true, nil
	}
	return "", false, nil
}

func newNoteAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NoteOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a note to a customer",
		Long: `Add a note. The note gets the customer's next note number and is mirrored
into the fallback store by the next reconcile run.

Example:
  clientbook note add --customer 1 --svg-file drawing.svg --date 13/02/2025`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svg, ok, err := opts.content()
			if err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitCommandError, "one of --svg or --svg-file is required")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				n, err := s.eng.CreateNote(ctx, store.Note{CustomerID: opts.CustomerID, SVG: svg, Date: opts.Date})
				if err != nil {
					return err
				}
				return s.out.Success(n)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.CustomerID, "customer", 0, "customer id (required)")
	_ = cmd.MarkFlagRequired("customer")
	noteContentFlags(cmd, opts)
	return cmd
}

func newNoteEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NoteOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "edit <note-id>",
		Short: "Replace a note's content or date",
		Long: `Replace a note's content or date. The content before the edit is kept
as the note's single previous version; see "note undo".`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("note", args[0])
			if err != nil {
				return err
			}
			svg, hasSVG, err := opts.content()
			if err != nil {
				return err
			}
			if !hasSVG && opts.Date == "" {
				return NewExitError(ExitCommandError, "nothing to change: give --svg, --svg-file or --date")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				n, err := s.eng.Store().GetNote(ctx, id)
				if err != nil {
					return err
				}
				if hasSVG {
					n.SVG = svg
				}
				if opts.Date != "" {
					n.Date = opts.Date
				}
				updated, err := s.eng.UpdateNote(ctx, n)
				if err != nil {
					return err
				}
				return s.out.Success(updated)
			})
		},
	}
	noteContentFlags(cmd, opts)
	return cmd
}

func newNoteUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <note-id>",
		Short: "Restore a note's previous version",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("note", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				restored, err := s.eng.UndoNote(ctx, id)
				if err != nil {
					return err
				}
				if restored == nil {
					return NewExitError(ExitFailure, fmt.Sprintf("note %d has no previous version", id))
				}
				return s.out.Success(restored)
			})
		},
	}
}

// NoteDetail is a note with its retained previous version.
type NoteDetail struct {
	Note     store.Note         `json:"note"`
	Previous *store.NoteVersion `json:"previous,omitempty"`
}

func newNoteShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <note-id>",
		Short: "Show a note and its previous version",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("note", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				n, err := s.eng.Store().GetNote(ctx, id)
				if err != nil {
					return err
				}
				prev, err := s.eng.Store().NoteVersion(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(NoteDetail{Note: n, Previous: prev})
			})
		},
	}
}

func newNoteListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <customer-id>",
		Short: "List a customer's notes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custID, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				list, err := s.eng.Store().NotesByCustomer(ctx, custID)
				if err != nil {
					return err
				}
				return s.out.Success(list)
			})
		},
	}
}

func newNoteDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <note-id>",
		Short: "Delete a note from both locations",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("note", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.eng.DeleteNote(ctx, id); err != nil {
					return err
				}
				return s.out.Success(map[string]int64{"deleted": id})
			})
		},
	}
}

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/store"
)

// CustomerOptions holds the customer field flags shared by add and update.
type CustomerOptions struct {
	*RootOptions
	FirstName     string
	LastName      string
	Contact       string
	Social        string
	Referral      string
	ReferralNotes string
	Limit         int
}

// NewCustomerCommand creates the customer command group.
func NewCustomerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}

	cmd.AddCommand(newCustomerAddCommand(rootOpts))
	cmd.AddCommand(newCustomerGetCommand(rootOpts))
	cmd.AddCommand(newCustomerSearchCommand(rootOpts))
	cmd.AddCommand(newCustomerRecentCommand(rootOpts))
	cmd.AddCommand(newCustomerUpdateCommand(rootOpts))
	cmd.AddCommand(newCustomerDeleteCommand(rootOpts))

	return cmd
}

func customerFlags(cmd *cobra.Command, opts *CustomerOptions) {
	cmd.Flags().StringVar(&opts.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "contact number")
	cmd.Flags().StringVar(&opts.Social, "social", "", "social media name")
	cmd.Flags().StringVar(&opts.Referral, "referral", "", "referral type")
	cmd.Flags().StringVar(&opts.ReferralNotes, "referral-notes", "", "referral notes")
}

// apply copies the flags the user set onto c.
func (o *CustomerOptions) apply(cmd *cobra.Command, c *store.Customer) {
	fields := []struct {
		flag string
		dst  *string
		v    string
	}{
		{"first", &c.FirstName, o.FirstName},
		{"last", &c.LastName, o.LastName},
		{"contact", &c.ContactNumber, o.Contact},
		{"social", &c.SocialMediaName, o.Social},
		{"referral", &c.ReferralType, o.Referral},
		{"referral-notes", &c.ReferralNotes, o.ReferralNotes},
	}
	for _, f := range fields {
		if cmd.Flags().Changed(f.flag) {
			*f.dst = f.v
		}
	}
}

func newCustomerAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CustomerOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a customer",
		Long: `Add a customer and print it.

Example:
  clientbook customer add --first Ana --last Lee --contact 555-0001`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c store.Customer
			opts.apply(cmd, &c)
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				id, err := s.eng.CreateCustomer(ctx, c)
				if err != nil {
					return err
				}
				created, err := s.eng.GetCustomer(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(created)
			})
		},
	}
	customerFlags(cmd, opts)
	return cmd
}

func newCustomerGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a customer",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				c, err := s.eng.GetCustomer(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(c)
			})
		},
	}
}

func newCustomerSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search customers by name, contact number or social media name",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				found, err := s.eng.SearchCustomers(ctx, args[0])
				if err != nil {
					return err
				}
				return s.out.Success(found)
			})
		},
	}
}

func newCustomerRecentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CustomerOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently updated customers",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit <= 0 {
				return NewExitError(ExitCommandError, "--limit must be positive")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				recent, err := s.eng.Store().RecentCustomers(ctx, opts.Limit)
				if err != nil {
					return err
				}
				return s.out.Success(recent)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of customers")
	return cmd
}

func newCustomerUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CustomerOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a customer's fields",
		Long: `Change the fields given as flags and keep the rest.

Example:
  clientbook customer update 1 --contact 555-0002`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				c, err := s.eng.GetCustomer(ctx, id)
				if err != nil {
					return err
				}
				opts.apply(cmd, &c)
				updated, err := s.eng.UpdateCustomer(ctx, c)
				if err != nil {
					return err
				}
				return s.out.Success(updated)
			})
		},
	}
	customerFlags(cmd, opts)
	return cmd
}

func newCustomerDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a customer with all appointments, images and notes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("customer", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.eng.DeleteCustomer(ctx, id); err != nil {
					return err
				}
				return s.out.Success(map[string]int64{"deleted": id})
			})
		},
	}
}

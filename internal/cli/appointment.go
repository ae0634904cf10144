package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/store"
)

// AppointmentOptions holds flags for the appointment commands.
type AppointmentOptions struct {
	*RootOptions
	CustomerID int64
	Title      string
	Type       string
	Start      string
	End        string
	Duration   time.Duration
	From       string
	To         string
}

// NewAppointmentCommand creates the appointment command group.
func NewAppointmentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointment",
		Short: "Manage appointments",
	}
	cmd.AddCommand(newAppointmentAddCommand(rootOpts))
	cmd.AddCommand(newAppointmentListCommand(rootOpts))
	return cmd
}

func newAppointmentAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppointmentOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book an appointment",
		Long: `Book an appointment for an existing customer. Times are RFC 3339.

Example:
  clientbook appointment add --customer 1 --start 2025-01-10T09:00:00Z --end 2025-01-10T10:00:00Z`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.appointment()
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				id, err := s.eng.Store().CreateAppointment(ctx, a)
				if err != nil {
					return err
				}
				created, err := s.eng.Store().GetAppointment(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(created)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.CustomerID, "customer", 0, "customer id (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Type, "type", "", "appointment type")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start time (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end time (default: start + --duration)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", time.Hour, "length when --end is not given")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func (o *AppointmentOptions) appointment() (store.Appointment, error) {
	start, err := parseTimeFlag("start", o.Start)
	if err != nil {
		return store.Appointment{}, err
	}
	end := start.Add(o.Duration)
	if o.End != "" {
		if end, err = parseTimeFlag("end", o.End); err != nil {
			return store.Appointment{}, err
		}
	}
	return store.Appointment{
		CustomerID: o.CustomerID,
		Title:      o.Title,
		Type:       o.Type,
		Start:      start,
		End:        end,
	}, nil
}

func newAppointmentListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppointmentOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments for a customer or a time range",
		Long: `List a customer's appointments, or every appointment starting within
[--from, --to]. Either bound may be omitted.

Example:
  clientbook appointment list --customer 1
  clientbook appointment list --from 2025-01-01T00:00:00Z`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to time.Time
			var err error
			if opts.From != "" {
				if from, err = parseTimeFlag("from", opts.From); err != nil {
					return err
				}
			}
			if opts.To != "" {
				if to, err = parseTimeFlag("to", opts.To); err != nil {
					return err
				}
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				var list []store.Appointment
				var err error
				if opts.CustomerID > 0 {
					list, err = s.eng.Store().AppointmentsByCustomer(ctx, opts.CustomerID)
				} else {
					list, err = s.eng.Store().AppointmentsBetween(ctx, from, to)
				}
				if err != nil {
					return err
				}
				return s.out.Success(list)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.CustomerID, "customer", 0, "customer id")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest start time")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest start time")

	return cmd
}

func parseTimeFlag(name, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s", name), err)
	}
	return t, nil
}

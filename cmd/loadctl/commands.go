package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	addr    string
	timeout time.Duration
	json    bool

	client *Client
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{}

	defaultAddr := os.Getenv("DISPATCH_API_ADDR")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:8080"
	}

	root := &cobra.Command{
		Use:           "loadctl",
		Short:         "Driver-side client for the dispatch hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			o.client = NewClient(o.addr, o.timeout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&o.addr, "addr", defaultAddr, "dispatch-api base URL (env DISPATCH_API_ADDR)")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&o.json, "json", false, "print raw JSON")

	root.AddCommand(
		listCmd(o),
		syncCmd(o),
		showCmd(o),
		confirmCmd(o),
		confirmAllCmd(o),
		rejectCmd(o),
		pickupCmd(o),
		deliverCmd(o),
		reassignCmd(o),
		stateCmd(o),
		eventsCmd(o),
	)
	return root
}

func listCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show confirmed and unconfirmed loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := o.client.List(cmd.Context())
			if err != nil {
				return err
			}
			return o.printLists(cmd.OutOrStdout(), out)
		},
	}
}

func syncCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-fetch all loads from dispatch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := o.client.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return o.printLists(cmd.OutOrStdout(), out)
		},
	}
}

func showCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show <load-id>",
		Short: "Show load details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := o.client.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), l)
			}
			printDetail(cmd.OutOrStdout(), l)
			return nil
		},
	}
}

func confirmCmd(o *rootOpts) *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "confirm <load-id>",
		Short: "Accept an unconfirmed load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := o.client.Confirm(cmd.Context(), args[0], pin)
			if err != nil {
				return err
			}
			return o.printLoad(cmd.OutOrStdout(), "confirmed", l)
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "4-digit confirmation PIN")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func confirmAllCmd(o *rootOpts) *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "confirm-all",
		Short: "Accept every unconfirmed load at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := o.client.ConfirmAll(cmd.Context(), pin)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "confirmed %d load(s)\n", len(out))
			printTable(w, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "4-digit confirmation PIN")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func rejectCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <load-id>",
		Short: "Decline an unconfirmed load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client.Reject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", args[0])
			return nil
		},
	}
}

func pickupCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "pickup <load-id>",
		Short: "Confirm the load was picked up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := o.client.Pickup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return o.printLoad(cmd.OutOrStdout(), "picked up", l)
		},
	}
}

func deliverCmd(o *rootOpts) *cobra.Command {
	var (
		notes  string
		photos []string
	)
	cmd := &cobra.Command{
		Use:   "deliver <load-id>",
		Short: "Complete delivery with proof photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := o.client.Deliver(cmd.Context(), args[0], notes, photos)
			if err != nil {
				return err
			}
			return o.printLoad(cmd.OutOrStdout(), "delivered", l)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "delivery notes")
	cmd.Flags().StringSliceVar(&photos, "photo", nil, "proof-of-delivery photo reference (repeatable)")
	return cmd
}

func reassignCmd(o *rootOpts) *cobra.Command {
	var reason, details string
	cmd := &cobra.Command{
		Use:   "reassign <load-id>",
		Short: "Ask dispatch to reassign a load",
		Long: "Ask dispatch to reassign a load. Reasons: " + strings.Join([]string{
			models.ReassignReasonEquipmentFailure,
			models.ReassignReasonIncorrectInfo,
			models.ReassignReasonDriverSick,
			models.ReassignReasonDriverOther,
			models.ReassignReasonLogistical,
			models.ReassignReasonOther,
		}, "; ") + ". Details are required for \"Other\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client.Reassign(cmd.Context(), args[0], reason, details); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reassignment requested for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reassignment reason")
	cmd.Flags().StringVar(&details, "details", "", "free-form details")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func stateCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Dump the registry state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.client.State(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func eventsCmd(o *rootOpts) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <load-id>",
		Short: "Show the transition log of a load (postgres backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evs, err := o.client.Events(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), evs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tKIND\tFROM\tTO")
			for _, e := range evs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.FromStatus, e.ToStatus)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max events")
	return cmd
}

func (o *rootOpts) printLists(w io.Writer, l *LoadLists) error {
	if o.json {
		return printJSON(w, l)
	}
	fmt.Fprintf(w, "Unconfirmed (%d)\n", len(l.Unconfirmed))
	printTable(w, l.Unconfirmed)
	fmt.Fprintf(w, "\nConfirmed (%d)\n", len(l.Confirmed))
	printTable(w, l.Confirmed)
	return nil
}

func (o *rootOpts) printLoad(w io.Writer, verb string, l *models.Load) error {
	if o.json {
		return printJSON(w, l)
	}
	fmt.Fprintf(w, "%s %s: %s / %s\n", verb, l.ID, l.Status, l.CurrentStage)
	return nil
}

func printTable(w io.Writer, items []*models.Load) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTAGE\tPICKUP\tDROPOFF\tPICKUP AT")
	for _, l := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Status, l.CurrentStage, l.PickupLocation, l.DropoffLocation, l.PickupAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printDetail(w io.Writer, l *models.Load) {
	fmt.Fprintf(w, "%s  %s / %s\n", l.ID, l.Status, l.CurrentStage)
	fmt.Fprintf(w, "  %s -> %s\n", l.PickupLocation, l.DropoffLocation)
	fmt.Fprintf(w, "  pickup %s, dropoff %s\n", l.PickupAt.Local().Format(time.DateTime), l.DropoffAt.Local().Format(time.DateTime))
	if l.Detail == nil {
		return
	}
	opt := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(w, "  %s: %s\n", label, *v)
		}
	}
	d := l.Detail
	fmt.Fprintf(w, "  %s, %s, %s\n", d.LoadInfo.Type, d.LoadInfo.Weight, d.LoadInfo.Dimensions)
	opt("special instructions", d.SpecialInstructions)
	opt("temperature", d.Recommendations.Temperature)
	opt("route", d.Recommendations.Route)
	opt("weather", d.Recommendations.Weather)
	for _, n := range d.DispatchNotes {
		fmt.Fprintf(w, "  note: %s\n", n)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

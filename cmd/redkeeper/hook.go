package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/redkeeper/pkg/events"
	"github.com/cuemby/redkeeper/pkg/reconciler"
)

var departingAddress string

var hookCmd = &cobra.Command{
	Use:   "hook EVENT",
	Short: "Reconcile once for a single lifecycle event",
	Long: `Reconcile once for a single lifecycle event and exit.

This is the entry point the platform invokes for each delivered hook. The
exit status reports the pass outcome: zero for applied and deferred passes,
non-zero for failed ones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := events.ParseKind(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ev := events.New(kind)
		ev.DepartingAddress = departingAddress

		res := a.engine.Reconcile(context.Background(), ev)
		fmt.Printf("%s: %s\n", res.Outcome, res.Status)
		if res.Outcome == reconciler.OutcomeFailed {
			return fmt.Errorf("%s: %w", res.Reason, res.Err)
		}
		return nil
	},
}

func init() {
	hookCmd.Flags().StringVar(&departingAddress, "departing-address", "",
		"Address of the departing unit (peer.departed events)")
}

package main

import (
	"fmt"

	"github.com/ravituringworks/agency/internal/presentation/tui"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/spf13/cobra"
)

var sagaCmd = &cobra.Command{
	Use:   "saga",
	Short: "Run the demo booking saga",
	Long: `Runs a flight, hotel and payment booking as a saga and prints its ledger.
Use --fail to decline the payment and watch the reservations roll back, and
--fail-compensation to make the hotel cancellation fail as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fail, _ := cmd.Flags().GetBool("fail")
		failCompensation, _ := cmd.Flags().GetBool("fail-compensation")
		showLedger, _ := cmd.Flags().GetBool("ledger")

		ctx := cmd.Context()
		a, err := newAgent(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.NewSaga("booking", bookingSteps(bookingFaults{
			failCharge:      fail || failCompensation,
			failHotelCancel: failCompensation,
		}))

		ec := domain.NewExecutionContext(domain.DefaultMaxSteps)
		ec.AddMessage(domain.UserMessage("Book a trip to Lisbon"))
		ledger := c.NewLedger(ec)

		res, err := c.Run(ctx, ledger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "saga %s (%s): %s\n", c.Name(), ledger.ID, res)
		if showLedger {
			return tui.WriteLedger(out, ledger)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sagaCmd)

	sagaCmd.Flags().Bool("fail", false, "Decline the payment step")
	sagaCmd.Flags().Bool("fail-compensation", false, "Decline the payment and fail the hotel cancellation")
	sagaCmd.Flags().Bool("ledger", true, "Print the ledger as YAML")
}

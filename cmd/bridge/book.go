package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"brainbridge/internal/booking"
	"brainbridge/internal/model"
)

func newBookCmd(opts *rootOptions) *cobra.Command {
	var (
		id            int64
		date          string
		points        int
		amount        float64
		paymentMethod string
		quote         bool
	)

	c := &cobra.Command{
		Use:   "book {live|in-person|course}",
		Short: "Book a live session, an in-person session or a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ResourceByName(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.bookingService()
			if err != nil {
				return err
			}

			req := booking.IntentRequest{
				ResourceID:  id,
				PointsToUse: points,
			}
			if date != "" {
				req.ScheduledDate = date
			}
			if cmd.Flags().Changed("amount") {
				req.NewPaymentAmount = &amount
			}

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if quote {
				intent, err := svc.RequestIntent(ctx, a.creds, r, req)
				if err != nil {
					return err
				}
				if intent.RequiresPayment {
					fmt.Fprintf(out, "payment required: %.2f %s (intent %s)\n", float64(intent.Amount), intent.Currency, intent.PaymentIntentID)
				} else {
					fmt.Fprintln(out, "no payment required")
				}
				return nil
			}

			attempt, err := svc.Book(ctx, a.creds, r, req, booking.Checkout{PaymentMethod: paymentMethod})
			if err != nil {
				fmt.Fprintf(out, "attempt %s failed\n", attempt.ID)
				return err
			}
			fmt.Fprintf(out, "booked %s #%d", r.Name, id)
			if attempt.ScheduledDate != "" {
				fmt.Fprintf(out, " on %s", attempt.ScheduledDate)
			}
			if attempt.BookingID != "" {
				fmt.Fprintf(out, " (booking %s)", attempt.BookingID)
			}
			fmt.Fprintln(out)
			if attempt.Message != "" {
				fmt.Fprintln(out, attempt.Message)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&id, "id", 0, "slot or course id")
	c.Flags().StringVar(&date, "date", "", "session date (YYYY-MM-DD or RFC 3339)")
	c.Flags().IntVar(&points, "points", 0, "loyalty points to redeem")
	c.Flags().Float64Var(&amount, "amount", 0, "override the amount to charge")
	c.Flags().StringVar(&paymentMethod, "payment-method", "", "Stripe payment method id")
	c.Flags().BoolVar(&quote, "quote", false, "only request the booking intent")
	_ = c.MarkFlagRequired("id")
	return c
}

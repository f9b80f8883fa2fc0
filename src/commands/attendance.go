package commands

import (
	"fmt"
	"io"

	"Backend-Volunteer-Hours/src/services/autocheckout"
	checkInOut "Backend-Volunteer-Hours/src/services/check-in-out"
	"Backend-Volunteer-Hours/src/services/timeservice"

	"github.com/spf13/cobra"
)

func newCheckinCmd(flags *globalFlags) *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check a volunteer in now",
		Example: `  volunteer checkin --user 1024 --name "Li Lei"`,
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			op, err := rt.operator(ctx)
			if err != nil {
				return err
			}

			res, err := rt.attendance.CheckIn(ctx, checkInOut.CheckinRequest{
				SubjectUserID:  userID,
				SubjectName:    name,
				OperatorUserID: op.UserID,
				OperatorName:   op.DisplayName,
			})
			if err != nil {
				return err
			}

			sched := rt.scheduler(autocheckout.NewBroadcaster())
			if err := sched.RecordCheckin(ctx, userID, name, res.SessionID, res.StartTime); err != nil {
				rt.logger.Sugar().Warnw("tracking state not saved", "error", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked in %s at %s\n", subjectLabel(userID, name), res.StartTime)
			fmt.Fprintf(out, "Session: %s\n", res.SessionID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&userID, "user", "", "volunteer user id")
	cmd.Flags().StringVar(&name, "name", "", "volunteer display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newCheckoutCmd(flags *globalFlags) *cobra.Command {
	var userID, remark string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check a volunteer out now",
		Example: `  volunteer checkout --user 1024 --remark "front desk"`,
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			op, err := rt.operator(ctx)
			if err != nil {
				return err
			}

			res, err := rt.attendance.CheckOut(ctx, checkInOut.CheckoutRequest{
				SubjectUserID:  userID,
				OperatorUserID: op.UserID,
				OperatorName:   op.DisplayName,
				Remark:         remark,
			})
			if err != nil {
				return err
			}

			sched := rt.scheduler(autocheckout.NewBroadcaster())
			if err := sched.RecordCheckout(ctx, userID); err != nil {
				rt.logger.Sugar().Warnw("tracking state not cleared", "error", err)
			}

			printCheckout(cmd.OutOrStdout(), userID, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&userID, "user", "", "volunteer user id")
	cmd.Flags().StringVar(&remark, "remark", "", "remark stored with the session")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newEntryCmd(flags *globalFlags) *cobra.Command {
	var req checkInOut.TimeEntryRequest
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Record a past session",
		Example: `  volunteer entry --user 1024 --start "2025-01-25 09:00:00" --end "2025-01-25 11:15:00"`,
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			op, err := rt.operator(ctx)
			if err != nil {
				return err
			}
			req.OperatorUserID = op.UserID
			req.OperatorName = op.DisplayName

			res, err := rt.attendance.PerformTimeEntry(ctx, req)
			if err != nil {
				return err
			}
			printCheckout(cmd.OutOrStdout(), req.SubjectUserID, res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.SubjectUserID, "user", "", "volunteer user id")
	cmd.Flags().StringVar(&req.SubjectName, "name", "", "volunteer display name")
	cmd.Flags().StringVar(&req.StartTime, "start", "", "session start, "+timeservice.ServerLayout)
	cmd.Flags().StringVar(&req.EndTime, "end", "", "session end, "+timeservice.ServerLayout)
	cmd.Flags().StringVar(&req.Remark, "remark", "", "remark stored with the session")
	for _, f := range []string{"user", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a volunteer's current session",
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			rec, err := rt.attendance.LatestSession(ctx, userID)
			if err != nil {
				return err
			}
			if rec == nil || !rec.IsOpen() {
				fmt.Fprintf(out, "%s is not checked in\n", userID)
				if rec != nil {
					fmt.Fprintf(out, "Last session: %s - %s\n", rec.StartTime, *rec.EndTime)
				}
				return nil
			}

			start, ok := rt.times.ParseServerTime(rec.StartTime)
			if !ok {
				fmt.Fprintf(out, "%s is checked in since %q (unreadable start time)\n", userID, rec.StartTime)
				return nil
			}
			elapsed := rt.times.CalculateDuration(start, rt.times.Now())
			fmt.Fprintf(out, "%s checked in %s\n", subjectLabel(userID, rec.LegalName), rt.times.FormatRelative(start))
			fmt.Fprintf(out, "Session: %s\n", rec.ID)
			fmt.Fprintf(out, "Elapsed: %s\n", elapsed.Display)
			if anomaly := rt.times.DetectTimeAnomaly(start); anomaly.Type != timeservice.AnomalyNone {
				fmt.Fprintf(out, "Warning: %s\n", anomaly.Message)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&userID, "user", "", "volunteer user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printCheckout(out io.Writer, userID string, res checkInOut.CheckoutResult) {
	fmt.Fprintf(out, "Checked out %s: %s - %s (%s)\n", userID, res.StartTime, res.EndTime, res.Duration.Display)
	if res.AutoApproved {
		fmt.Fprintln(out, "Approval: approved automatically")
	} else {
		fmt.Fprintf(out, "Approval: pending review (%s)\n", res.ApprovalReason)
	}
	if res.Warning != "" {
		fmt.Fprintf(out, "Warning: %s\n", res.Warning)
	}
}

func subjectLabel(userID, name string) string {
	if name == "" {
		return userID
	}
	return fmt.Sprintf("%s (%s)", name, userID)
}

package commands

import (
	"bufio"
	"fmt"
	"strings"

	"Backend-Volunteer-Hours/src/services/autocheckout"

	"github.com/spf13/cobra"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run auto checkout, reading lifecycle events from stdin",
		Long: `watch runs the auto-checkout scheduler for the tracked session.
Each input line is one command:
  active       the app came to the foreground
  background   the app went to the background
  overtime     run the 12 hour check now
  state        print the scheduler state
  quit         stop watching`,
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			lifecycle := autocheckout.NewBroadcaster()
			sched := rt.scheduler(lifecycle)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
			printState(cmd, sched)

			lines := make(chan string)
			done := make(chan struct{})
			defer close(done)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- strings.TrimSpace(scanner.Text()):
					case <-done:
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					switch line {
					case "":
						continue
					case "active":
						lifecycle.Emit(autocheckout.EventActive)
					case "background":
						lifecycle.Emit(autocheckout.EventBackground)
					case "overtime":
						sched.TriggerOvertimeCheck(ctx)
					case "state":
					case "quit", "exit":
						return nil
					default:
						fmt.Fprintf(out, "unknown command %q\n", line)
						continue
					}
					printState(cmd, sched)
				}
			}
		}),
	}
}

func printState(cmd *cobra.Command, sched *autocheckout.Scheduler) {
	out := cmd.OutOrStdout()
	if t := sched.Tracking(); t != nil {
		fmt.Fprintf(out, "state: %s (%s since %s)\n", sched.State(), subjectLabel(t.SubjectUserID, t.SubjectName), t.CheckinTime)
		return
	}
	fmt.Fprintf(out, "state: %s\n", sched.State())
}

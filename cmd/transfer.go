package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
)

// confirmPrompt is asked before a transfer runs without --yes.
const confirmPrompt = "Do you want to proceed? (Y)/n "

func newTransferCmd(opts *globalOptions) *cobra.Command {
	var (
		move bool
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "transfer <from> <from-path> <to> <to-path>",
		Short: "Copy or move a file or folder tree between sources",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := core.MethodCopy
			if move {
				method = core.MethodMove
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				from, err := a.registry.Get(args[0])
				if err != nil {
					return err
				}
				to, err := a.registry.Get(args[2])
				if err != nil {
					return err
				}

				plan, err := core.PlanTransfer(ctx, from, args[1], to, args[3], method)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printPlan(out, plan)
				if !yes {
					ok, err := confirm(cmd.InOrStdin(), out)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted.")
						return nil
					}
				}

				report, err := a.engine.Transfer(ctx, plan.Request, printEvent(out))
				if report != nil {
					printReport(out, report)
				}
				if err != nil {
					return err
				}
				if len(report.Errors) > 0 {
					return errs.Wrap(errs.KindBackendFailure, fmt.Sprintf("transfer finished with %d failed objects", len(report.Errors)), report.Err())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&move, "move", false, "Remove the source objects after copying them")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm reads the answer to confirmPrompt. An empty answer means yes.
func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, confirmPrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errs.Wrap(errs.KindLocalIOFailure, "failed to read answer", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func printPlan(w io.Writer, plan *core.TransferPlan) {
	req := plan.Request
	fmt.Fprintf(w, "%s %s %s:%s to %s:%s\n",
		color.CyanString(strings.ToUpper(string(req.Method))), req.Kind,
		req.Source.Name(), req.SourcePath, req.Destination.Name(), req.Container)

	if plan.File != nil {
		fmt.Fprintf(w, "  %s (%s)\n", plan.File.Path, humanize.IBytes(uint64(plan.File.Size)))
		return
	}
	for _, e := range plan.Entries {
		if e.Kind == core.KindDir {
			fmt.Fprintf(w, "  %s\n", color.BlueString(e.Path))
		} else {
			fmt.Fprintf(w, "  %s\n", e.Path)
		}
	}
}

// printEvent prints transfer progress. The engine serialises observer
// calls.
func printEvent(w io.Writer) core.Observer {
	return func(ev core.TransferEvent) {
		if ev.Err != nil {
			fmt.Fprintf(w, "%s %s %s: %v\n", color.RedString("✗"), ev.Op, ev.Key, ev.Err)
			return
		}
		switch ev.Op {
		case core.OpSkip:
			fmt.Fprintf(w, "%s skip %s\n", color.YellowString("-"), ev.Key)
		case core.OpDelete:
			fmt.Fprintf(w, "%s delete %s\n", color.GreenString("✓"), ev.Key)
		default:
			fmt.Fprintf(w, "%s %s %s -> %s\n", color.GreenString("✓"), ev.Op, ev.Key, ev.Target)
		}
	}
}

func printReport(w io.Writer, r *core.TransferReport) {
	fmt.Fprintf(w, "Transfer %s finished in %s: %d transferred, %d deleted, %d skipped, %d failed\n",
		r.ID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
		len(r.Transferred), len(r.Deleted), len(r.Skipped), len(r.Errors))

	if r.Redirect != nil {
		fmt.Fprintf(w, "Redirect (%s): %s => %s\n", r.Redirect.Kind, r.Redirect.Pattern, r.Redirect.Target)
	}
}

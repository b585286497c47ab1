package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/spf13/cobra"
)

type recognizeOptions struct {
	// Count > 0 runs that many timed captures instead of waiting for Enter.
	Count    int
	Interval time.Duration
}

var recognizeOpts recognizeOptions

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Check a person at the gate against the registered faces",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRecognize(cmd.Context(), recognizeOpts, os.Stdin)
	},
}

func init() {
	recognizeCmd.Flags().IntVarP(&recognizeOpts.Count, "count", "n", 0, "Number of timed captures (default: one per Enter until EOF)")
	recognizeCmd.Flags().DurationVar(&recognizeOpts.Interval, "interval", 2*time.Second, "Delay between timed captures")
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(ctx context.Context, opts recognizeOptions, in io.Reader) error {
	reader := bufio.NewReader(in)
	unattended := opts.Count > 0

	rep := newTerminalReporter(os.Stderr, !unattended)
	defer rep.Close()

	rec := workflow.NewRecognition(workflow.RecognitionDeps{
		Camera:   newCamera(Cfg),
		Encoder:  newEncoder(Cfg),
		Client:   newClient(Cfg),
		Reporter: rep,
		Journal:  journal(),
		Logger:   Log,
	})
	defer rec.Close()

	canRetry := func() bool { return rec.State().RetryEnabled }

	fmt.Fprintln(os.Stderr, "🚀 Starting camera...")
	if err := retryCamera(ctx, reader, unattended, rec.Start(ctx), canRetry, rec.Retry); err != nil {
		return err
	}

	counts := map[workflow.OutcomeKind]int{}
	for i := 0; !unattended || i < opts.Count; i++ {
		if unattended {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(opts.Interval):
				}
			}
		} else if !waitEnter(reader, "🚪 Press Enter to check access") {
			break
		}

		out, _ := rec.Recognize(ctx)
		counts[out.Kind]++
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if out.Kind == workflow.Failed && canRetry() {
			if err := retryCamera(ctx, reader, unattended, errors.New(out.Message), canRetry, rec.Retry); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Done. %d accepted, %d rejected, %d failed.\n",
		counts[workflow.Accepted], counts[workflow.Rejected], counts[workflow.Failed])
	return nil
}

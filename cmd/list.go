package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/utils"
	"github.com/spf13/cobra"
)

var (
	listLimit    int
	listWorkflow string
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List recent capture attempts from the journal",
	Annotations: map[string]string{needsJournal: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runList(cmd.Context())
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 20, "Maximum number of attempts to show")
	listCmd.Flags().StringVarP(&listWorkflow, "workflow", "w", "", "Only show registration, recognition or snapshot attempts")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) error {
	attempts, err := DB.ListAttempts(ctx, listWorkflow, listLimit)
	if err != nil {
		utils.ShowError(os.Stderr, "Failed to list attempts", err, nil)
		return err
	}

	if len(attempts) == 0 {
		fmt.Println("No attempts recorded yet.")
		return nil
	}
	printAttempts(os.Stdout, attempts)
	return nil
}

func printAttempts(out io.Writer, attempts []types.Attempt) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tWORKFLOW\tOUTCOME\tSUBJECT\tMESSAGE")
	fmt.Fprintln(w, "----\t--------\t-------\t-------\t-------")

	for _, a := range attempts {
		subject := a.Subject
		if subject == "" {
			subject = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.Workflow, a.Outcome, subject, a.Message)
	}
	w.Flush()
}

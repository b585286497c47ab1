package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/andresmejia3/checkpoint/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetJournal bool
	resetFiles   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local state (attempt journal, saved captures)",
	Long:  "Clears local data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		// If no flags are set, default to clearing EVERYTHING
		if !resetJournal && !resetFiles {
			resetJournal = true
			resetFiles = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetJournal {
			if DB == nil {
				fmt.Fprintln(os.Stderr, "⚠️  No database configured, skipping journal.")
			} else if confirm(reader, "⚠️  Are you sure you want to DROP the attempt journal?") {
				fmt.Println("🗑️  Clearing Journal...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.ShowError(os.Stderr, "Failed to reset journal", err, nil)
					return err
				}
			}
		}

		if resetFiles {
			switch {
			case Cfg.SaveDir == "":
				fmt.Fprintln(os.Stderr, "⚠️  No save dir configured, skipping captures.")
			case !utils.FileExists(Cfg.SaveDir):
				fmt.Fprintf(os.Stderr, "ℹ️  %s does not exist, nothing to clear.\n", Cfg.SaveDir)
			case confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete all captures in %s?", Cfg.SaveDir)):
				fmt.Println("🗑️  Clearing Saved Captures...")
				removeDir(Cfg.SaveDir)
			}
		}

		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetJournal, "journal", false, "Drop the PostgreSQL attempt journal")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Delete saved captures")
	rootCmd.AddCommand(resetCmd)
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}

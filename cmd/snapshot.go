package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/checkpoint/internal/utils"
	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/spf13/cobra"
)

type snapshotOptions struct {
	Input workflow.SnapshotInput
	Out   string
	// Local skips the form submission and only keeps the capture.
	Local bool
}

var snapshotOpts snapshotOptions

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take one photo and send it with the visitor form",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSnapshot(cmd.Context(), snapshotOpts)
	},
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotOpts.Input.Name, "name", "", "Visitor name")
	f.StringVar(&snapshotOpts.Input.Email, "email", "", "Visitor email")
	f.StringVar(&snapshotOpts.Input.Company, "company", "", "Visitor company")
	f.StringVarP(&snapshotOpts.Out, "out", "o", "", "Also write the JPEG to this file")
	f.BoolVar(&snapshotOpts.Local, "local", false, "Do not submit, only capture (requires --out or --save-dir)")
	snapshotCmd.MarkFlagRequired("name")
	snapshotCmd.MarkFlagRequired("email")
	snapshotCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(ctx context.Context, opts snapshotOptions) error {
	if opts.Local && opts.Out == "" && Cfg.SaveDir == "" {
		err := fmt.Errorf("--local needs --out or --save-dir, otherwise the capture is lost")
		utils.ShowError(os.Stderr, "Nothing to do", err, nil)
		return err
	}

	rep := newTerminalReporter(os.Stderr, true)
	defer rep.Close()

	s := &workflow.Snapshot{
		Camera:   newCamera(Cfg),
		Encoder:  newEncoder(Cfg),
		Reporter: rep,
		Journal:  journal(),
		Logger:   Log,
	}
	if !opts.Local {
		s.Client = newClient(Cfg)
	}

	img, err := s.Run(ctx, opts.Input)
	if err != nil {
		utils.ShowError(os.Stderr, "Snapshot failed", err, nil)
		return err
	}

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, img.Bytes(), 0o644); err != nil {
			utils.ShowError(os.Stderr, "Failed to write snapshot", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "💾 Snapshot written to %s (%dx%d)\n", opts.Out, img.Width(), img.Height())
	}
	if path, err := saveImage(Cfg.SaveDir, "snapshot", img); err != nil {
		Log.WithError(err).Warn("could not keep snapshot")
	} else if path != "" {
		fmt.Fprintf(os.Stderr, "💾 Snapshot saved to %s\n", path)
	}
	return nil
}

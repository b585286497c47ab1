package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/checkpoint/internal/utils"
	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	Form   workflow.Form
	Camera bool
}

var checkOpts checkOptions

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate registration fields offline, and optionally probe the camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCheck(cmd.Context(), checkOpts, os.Stdout)
	},
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkOpts.Form.FirstName, "first-name", "", "First name")
	f.StringVar(&checkOpts.Form.LastName, "last-name", "", "Last name")
	f.StringVar(&checkOpts.Form.IDNumber, "id-number", "", "Identification number")
	f.StringVar(&checkOpts.Form.Department, "department", "", "Department (optional)")
	f.StringVar(&checkOpts.Form.AccessType, "access-type", "", "Access type ("+accessTypeList()+")")
	f.BoolVar(&checkOpts.Camera, "camera", false, "Also open the camera and report its native resolution")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, opts checkOptions, out io.Writer) error {
	if err := opts.Form.Validate(); err != nil {
		utils.ShowError(os.Stderr, "Registration data is not valid", err, nil)
		return err
	}
	fmt.Fprintln(out, "✅ Registration fields are valid")

	if !opts.Camera {
		return nil
	}

	cam := newCamera(Cfg)
	s, err := cam.Open(ctx)
	if err != nil {
		utils.ShowError(os.Stderr, "Camera unavailable", err, nil)
		return err
	}
	defer s.Close()

	w, h := s.Dimensions()
	fmt.Fprintf(out, "📷 Camera ready at %dx%d\n", w, h)
	return nil
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/utils"
	"github.com/andresmejia3/checkpoint/internal/workflow"
	"github.com/spf13/cobra"
)

type registerOptions struct {
	Form workflow.Form
	// Yes runs unattended: no prompts, no retries, capture immediately.
	Yes bool
}

var registerOpts registerOptions

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Enroll a person with a face capture and a fingerprint scan",
	Long: "Opens the camera, captures the face, runs the fingerprint scan and submits the registration.\n" +
		"Access type is one of: " + accessTypeList() + ".",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRegister(cmd.Context(), registerOpts, os.Stdin)
	},
}

func init() {
	f := registerCmd.Flags()
	f.StringVar(&registerOpts.Form.FirstName, "first-name", "", "First name")
	f.StringVar(&registerOpts.Form.LastName, "last-name", "", "Last name")
	f.StringVar(&registerOpts.Form.IDNumber, "id-number", "", "Identification number")
	f.StringVar(&registerOpts.Form.Department, "department", "", "Department (optional)")
	f.StringVar(&registerOpts.Form.AccessType, "access-type", "", "Access type ("+accessTypeList()+")")
	f.BoolVarP(&registerOpts.Yes, "yes", "y", false, "Run without prompts")
	rootCmd.AddCommand(registerCmd)
}

func accessTypeList() string {
	names := make([]string, len(types.AccessTypes))
	for i, a := range types.AccessTypes {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func runRegister(ctx context.Context, opts registerOptions, in io.Reader) error {
	reader := bufio.NewReader(in)
	form := opts.Form
	if !opts.Yes {
		form = askForm(reader, form)
	}
	form, err := settleForm(reader, opts.Yes, form)
	if err != nil {
		return err
	}

	rep := newTerminalReporter(os.Stderr, !opts.Yes)
	defer rep.Close()

	reg := workflow.NewRegistration(workflow.RegistrationDeps{
		Camera:      newCamera(Cfg),
		Encoder:     newEncoder(Cfg),
		Fingerprint: newFingerprintReader(Cfg),
		Client:      newClient(Cfg),
		Reporter:    rep,
		Journal:     journal(),
		Logger:      Log,
	})
	defer reg.Close()

	canRetry := func() bool { return reg.State().RetryEnabled }

	fmt.Fprintln(os.Stderr, "🚀 Starting camera...")
	if err := retryCamera(ctx, reader, opts.Yes, reg.Start(ctx), canRetry, reg.Retry); err != nil {
		return err
	}

	for {
		for !reg.State().FaceCaptured {
			if !opts.Yes && !waitEnter(reader, "🙂 Look at the camera and press Enter to capture") {
				return errAborted
			}
			err := reg.CaptureFace(ctx)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if canRetry() {
				if err := retryCamera(ctx, reader, opts.Yes, err, canRetry, reg.Retry); err != nil {
					return err
				}
				continue
			}
			if opts.Yes {
				utils.ShowError(os.Stderr, "Face capture failed", err, nil)
				return err
			}
		}

		for !reg.State().FingerprintCaptured {
			if !opts.Yes && !waitEnter(reader, "👆 Place a finger on the reader and press Enter") {
				return errAborted
			}
			if err := reg.ScanFingerprint(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if opts.Yes {
					utils.ShowError(os.Stderr, "Fingerprint scan failed", err, nil)
					return err
				}
			}
		}

		for {
			err := reg.Submit(ctx, form)
			if err == nil {
				break
			}
			if types.KindOf(err) == types.ValidationError {
				// Captures are kept; only the typed data needs fixing.
				if form, err = settleForm(reader, opts.Yes, form); err != nil {
					return err
				}
				continue
			}
			if opts.Yes || !confirm(reader, "🔁 Submit again?") {
				utils.ShowError(os.Stderr, "Registration failed", err, nil)
				return err
			}
		}

		if img := reg.State().Preview; img != nil {
			path, err := saveImage(Cfg.SaveDir, "face-"+strings.TrimSpace(form.IDNumber), *img)
			if err != nil {
				Log.WithError(err).Warn("could not keep face capture")
			} else if path != "" {
				fmt.Fprintf(os.Stderr, "💾 Face saved to %s\n", path)
			}
		}

		if opts.Yes || !confirm(reader, "➕ Register another person?") {
			return nil
		}
		if form, err = settleForm(reader, false, askForm(reader, workflow.Form{})); err != nil {
			return err
		}
		if err := retryCamera(ctx, reader, false, reg.Acknowledge(ctx), canRetry, reg.Retry); err != nil {
			return err
		}
	}
}

// askForm fills in the registration fields, offering current values as defaults.
func askForm(r *bufio.Reader, f workflow.Form) workflow.Form {
	f.FirstName = ask(r, "First name", f.FirstName)
	f.LastName = ask(r, "Last name", f.LastName)
	f.IDNumber = ask(r, "ID number", f.IDNumber)
	f.Department = ask(r, "Department", f.Department)
	f.AccessType = ask(r, "Access type ("+accessTypeList()+")", f.AccessType)
	return f
}

// settleForm loops until the registration fields validate. Unattended runs and
// operators who decline to edit get the validation error back.
func settleForm(r *bufio.Reader, unattended bool, f workflow.Form) (workflow.Form, error) {
	for {
		err := f.Validate()
		if err == nil {
			return f, nil
		}
		if unattended || !confirm(r, "✏️  "+types.Message(err)+". Edit the registration data?") {
			utils.ShowError(os.Stderr, "Registration data is not valid", err, nil)
			return f, err
		}
		f = askForm(r, f)
	}
}

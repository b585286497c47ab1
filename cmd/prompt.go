package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/checkpoint/internal/utils"
)

var errAborted = errors.New("aborted by operator")

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// waitEnter blocks until the operator presses Enter. It returns false on EOF.
func waitEnter(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s ", prompt)
	_, err := r.ReadString('\n')
	return err == nil
}

// ask prompts for a value, keeping current when the operator just presses Enter.
func ask(r *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	res, err := r.ReadString('\n')
	res = strings.TrimSpace(res)
	if res == "" || (err != nil && err != io.EOF) {
		return current
	}
	return res
}

// retryCamera keeps offering a camera retry while the workflow allows one.
// It gives up with the last error when the operator declines or when running
// unattended.
func retryCamera(ctx context.Context, r *bufio.Reader, unattended bool, err error, canRetry func() bool, retry func(context.Context) error) error {
	for err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if unattended || !canRetry() || !confirm(r, "📷 Retry camera?") {
			utils.ShowError(os.Stderr, "Camera unavailable", err, nil)
			return err
		}
		err = retry(ctx)
	}
	return nil
}

package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (ffmpeg logs)
// This ensures we don't lose the device error text if the capture process dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command and attaches a buffer to its Stderr pipe
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// LastStderrLine returns the last non-empty line written to Stderr.
// ffmpeg prints the device failure ("Permission denied", "No such device") last.
func (s *SafeCommand) LastStderrLine() string {
	if s == nil || s.Stderr == nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(s.Stderr.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// ShowError prints a formatted error box and dumps capture logs if a SafeCommand is provided.
// It does not exit; commands return the error to cobra.
func ShowError(w io.Writer, context string, err error, s *SafeCommand) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "🚨 CHECKPOINT ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(w, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(w, "\nCAPTURE LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}

// --- 2. Camera Stream Framing ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// CaptureArgs describes one ffmpeg capture invocation.
type CaptureArgs struct {
	InputFormat string // v4l2, avfoundation, dshow
	Device      string
	Width       int
	Height      int
	FrameRate   int
}

// NewFFmpegCaptureCmd creates a camera reader pipe
// It configures FFmpeg to grab from a capture device and output raw MJPEG frames to Stdout.
func NewFFmpegCaptureCmd(ctx context.Context, ffmpegPath string, a CaptureArgs) *SafeCommand {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", a.InputFormat}
	if a.Width > 0 && a.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", a.Width, a.Height))
	}
	if a.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(a.FrameRate))
	}
	// -an: video only, the camera is never opened with audio
	args = append(args, "-i", a.Device, "-an", "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-")
	return NewSafeCommand(ctx, ffmpegPath, args...)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

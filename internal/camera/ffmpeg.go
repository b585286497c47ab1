package camera

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/andresmejia3/checkpoint/internal/utils"
)

// FFmpegDriver captures from the platform camera API through an ffmpeg child process.
type FFmpegDriver struct {
	FFmpegPath string // defaults to "ffmpeg" on PATH
	Device     string // defaults per platform, see DefaultDevice
	GOOS       string // defaults to runtime.GOOS
}

// inputFormat maps an OS to the ffmpeg demuxer that talks to its cameras.
func inputFormat(goos string) (string, bool) {
	switch goos {
	case "linux":
		return "v4l2", true
	case "darwin":
		return "avfoundation", true
	case "windows":
		return "dshow", true
	}
	return "", false
}

// DefaultDevice is the first (usually front-facing) camera of the platform.
func DefaultDevice(goos string) string {
	switch goos {
	case "linux":
		return "/dev/video0"
	case "darwin":
		return "0:none"
	}
	return ""
}

func (d FFmpegDriver) Start(ctx context.Context, c Constraints) (Feed, error) {
	goos := d.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	format, ok := inputFormat(goos)
	if !ok {
		return nil, types.Errorf(types.UnsupportedDevice, "media capture is not supported on %s", goos)
	}

	bin := d.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, types.Wrap(types.UnsupportedDevice, "media capture is unavailable: ffmpeg not found", err)
	}

	device := d.Device
	if device == "" {
		device = DefaultDevice(goos)
	}
	if device == "" {
		return nil, types.Errorf(types.PermissionOrDeviceError, "no camera device configured")
	}
	// v4l2 devices are files; surface the OS error text as-is (permission denied, no such file).
	if format == "v4l2" {
		f, err := os.Open(device)
		if err != nil {
			return nil, types.Wrap(types.PermissionOrDeviceError, "", err)
		}
		f.Close()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The process outlives Open's context; it is stopped by Feed.Close.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := utils.NewFFmpegCaptureCmd(procCtx, path, utils.CaptureArgs{
		InputFormat: format,
		Device:      device,
		Width:       c.Width,
		Height:      c.Height,
		FrameRate:   c.FrameRate,
	})

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, types.Wrap(types.PermissionOrDeviceError, "", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, types.Wrap(types.PermissionOrDeviceError, "", err)
	}

	return &ffmpegFeed{cmd: cmd, stdout: stdout, cancel: cancel}, nil
}

type ffmpegFeed struct {
	cmd    *utils.SafeCommand
	stdout io.ReadCloser
	cancel context.CancelFunc

	once sync.Once
	err  error
}

func (f *ffmpegFeed) Read(p []byte) (int, error) { return f.stdout.Read(p) }

// Close kills ffmpeg and reports how it exited. A device failure is reported
// with ffmpeg's own last stderr line.
func (f *ffmpegFeed) Close() error {
	f.once.Do(func() {
		f.cancel()
		if err := f.cmd.Wait(); err != nil {
			f.err = types.Wrap(types.PermissionOrDeviceError, f.cmd.LastStderrLine(), err)
		}
	})
	return f.err
}

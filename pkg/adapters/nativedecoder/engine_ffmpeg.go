package nativedecoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// ffmpegEngine pipes raw BGRA frames out of an ffmpeg process.
type ffmpegEngine struct {
	bin  string
	path string

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
}

func newFFmpegEngine(bin, path string) *ffmpegEngine {
	return &ffmpegEngine{bin: bin, path: path}
}

func (e *ffmpegEngine) name() Engine { return EngineFFmpeg }

// findFFmpeg returns custom if set, otherwise searches PATH and common locations.
func findFFmpeg(custom string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, custom)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrFFmpegNotFound
}

// ffmpegArgs builds the command line that decodes path from ss seconds to raw BGRA on stdout.
func ffmpegArgs(path string, ss float64) []string {
	args := []string{"-v", "error", "-nostdin"}
	if ss > 0 {
		args = append(args, "-ss", strconv.FormatFloat(ss, 'f', 6, 64))
	}
	return append(args,
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"-vsync", "passthrough",
		"pipe:1",
	)
}

// startOffset returns the input seek position for presentation index from. It sits
// half a frame early so the frame at from is not lost to rounding.
func startOffset(t *track, from int) float64 {
	if from <= 0 {
		return 0
	}
	ss := t.timestamp(from)
	if fps := t.fps(); fps > 0 {
		ss -= 0.5 / fps
	}
	if ss < 0 {
		return 0
	}
	return ss
}

func (e *ffmpegEngine) start(t *track, from int) error {
	e.close()

	cmd := exec.Command(e.bin, ffmpegArgs(e.path, startOffset(t, from))...)
	e.stderr.Reset()
	cmd.Stderr = &e.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	e.cmd, e.stdout = cmd, stdout
	return nil
}

func (e *ffmpegEngine) next(dst []byte) error {
	if e.cmd == nil {
		return io.EOF
	}
	_, err := io.ReadFull(e.stdout, dst)
	if err == nil {
		return nil
	}

	werr := e.wait()
	switch {
	case errors.Is(err, io.EOF) && werr == nil:
		return io.EOF
	case werr != nil:
		return fmt.Errorf("ffmpeg: %w: %s", werr, e.stderrText())
	default:
		return fmt.Errorf("ffmpeg: truncated frame: %w: %s", err, e.stderrText())
	}
}

func (e *ffmpegEngine) wait() error {
	err := e.cmd.Wait()
	e.cmd, e.stdout = nil, nil
	return err
}

func (e *ffmpegEngine) stderrText() string {
	return strings.TrimSpace(e.stderr.String())
}

func (e *ffmpegEngine) close() error {
	if e.cmd == nil {
		return nil
	}
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.wait()
	return nil
}

package movie

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
)

// Encoder streams raw RGBA frames to an ffmpeg subprocess. A missing
// ffmpeg binary or an encoder failure is fatal; no recovery is attempted.
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

// StartEncoder launches ffmpeg writing an H.264 movie to path at the
// given frame rate. bitrate may be empty to let the encoder choose.
func StartEncoder(path string, w, h, fps int, bitrate string) (*Encoder, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("movie: ffmpeg not found: %w", err)
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprint(fps),
		"-i", "-",
		"-pix_fmt", "yuv420p",
	}
	if bitrate != "" {
		args = append(args, "-b:v", bitrate)
	}
	args = append(args, path)

	cmd := exec.Command(bin, args...)
	enc := &Encoder{cmd: cmd}
	cmd.Stderr = &enc.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("movie: opening encoder pipe: %w", err)
	}
	enc.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("movie: starting ffmpeg: %w", err)
	}
	return enc, nil
}

// WriteFrame sends one RGBA frame to the encoder.
func (e *Encoder) WriteFrame(img *image.RGBA) error {
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("movie: writing frame: %w (ffmpeg: %s)", err, e.stderr.String())
	}
	return nil
}

// Abort tears the encoder down without waiting for a clean flush: the
// pipe is closed, the process killed and reaped. Used when a frame write
// fails mid-stream, where the partial output is worthless anyway.
func (e *Encoder) Abort() {
	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()
}

// Close flushes the stream and waits for ffmpeg to finish.
func (e *Encoder) Close() error {
	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("movie: closing encoder pipe: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("movie: ffmpeg failed: %w (ffmpeg: %s)", err, e.stderr.String())
	}
	return nil
}

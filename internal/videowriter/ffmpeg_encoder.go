package videowriter

import (
	"fmt"
	"io"
	"os/exec"
)

// FFmpegEncoder is the production Encoder: it shells out to the ffmpeg
// binary, piping raw frames to its stdin and letting it handle the
// FOURCC/container muxing. No pack example vendors a native Go video
// codec, and none of the teacher's dependencies cover container muxing
// either — ffmpeg via os/exec is the idiomatic choice the wider Go
// ecosystem reaches for here, the same way the teacher's own file sink
// (file_sink.cpp) delegated muxing to OpenCV's VideoWriter rather than
// hand-rolling a codec.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	width  int
	height int
}

// NewFFmpegEncoder returns a NewEncoderFunc that backs Writer with
// FFmpegEncoder, matching the seam Writer expects.
func NewFFmpegEncoder() Encoder {
	return &FFmpegEncoder{}
}

func (e *FFmpegEncoder) Open(path string, width, height, fps int, fourCC string) error {
	e.width, e.height = width, height

	e.cmd = exec.Command("ffmpeg",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-vcodec", fourCC,
		path,
	)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("videowriter: ffmpeg stdin pipe: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("videowriter: ffmpeg start: %w", err)
	}
	return nil
}

func (e *FFmpegEncoder) WriteFrame(pix []byte, width, height, channels int) error {
	if e.stdin == nil {
		return fmt.Errorf("videowriter: ffmpeg encoder not open")
	}
	_, err := e.stdin.Write(pix)
	return err
}

func (e *FFmpegEncoder) Close() error {
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.cmd != nil {
		return e.cmd.Wait()
	}
	return nil
}

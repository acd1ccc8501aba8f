package station

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/retrowaves/retrowaves/internal/frame"
)

// decoderStallTimeout is how long a decoder may go without producing a
// frame before it is considered stuck and killed.
const decoderStallTimeout = 2 * frame.Period

// Decoder spawns ffmpeg to decode one MP3 file into raw s16le/48000/stereo
// PCM and exposes it one frame at a time.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc

	reader *bufio.Reader
}

// StartDecoder spawns ffmpeg against path. The caller must call Close when
// done, even on error paths where a partial process may have started.
func StartDecoder(ctx context.Context, path string) (*Decoder, error) {
	ctx, cancel := context.WithCancel(ctx)

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "warning",
		"-i", path,
		"-f", "s16le", "-ar", "48000", "-ac", "2",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	go drainStderr(stderr)

	return &Decoder{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		reader: bufio.NewReaderSize(stdout, frame.Size*4),
	}, nil
}

// ReadFrame blocks for exactly one PCM frame. io.EOF means the segment
// ended cleanly; any other error means the decoder is unusable.
//
// A final read that lands mid-frame (io.ErrUnexpectedEOF) is not treated
// as a decoder failure: the short frame is zero-padded (frame.New already
// zeroes the tail past what was read) and returned alongside io.EOF, so
// the caller flushes the trailing partial audio instead of dropping it.
func (d *Decoder) ReadFrame() (frame.Frame, error) {
	f := frame.New()
	n, err := io.ReadFull(d.reader, f)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, io.ErrUnexpectedEOF) && n > 0 {
		return f, io.EOF
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return nil, err
}

// Close terminates the decoder process and releases its pipes.
func (d *Decoder) Close() error {
	d.cancel()
	err := d.stdout.Close()
	_ = d.cmd.Wait()
	return err
}

func drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		slog.Debug("decoder", "output", scanner.Text())
	}
}

// ReadFrameWithStallGuard wraps ReadFrame with a deadline: if no frame
// arrives within decoderStallTimeout, the decoder is treated as stuck.
func (d *Decoder) ReadFrameWithStallGuard() (frame.Frame, error) {
	type result struct {
		f   frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := d.ReadFrame()
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		return r.f, r.err
	case <-time.After(decoderStallTimeout):
		return nil, fmt.Errorf("decoder stalled for more than %s", decoderStallTimeout)
	}
}

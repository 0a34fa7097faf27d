package recording

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/media"
)

const chunkSize = 64 * 1024

var containers = map[string]string{
	"video/webm":       "webm",
	"video/mp4":        "mp4",
	"video/x-matroska": "matroska",
}

var videoEncoders = map[string]string{
	"vp8":  "libvpx",
	"vp9":  "libvpx-vp9",
	"h264": "libx264",
	"avc1": "libx264",
}

var audioEncoders = map[string]string{
	"opus":   "libopus",
	"vorbis": "libvorbis",
	"aac":    "aac",
	"mp4a":   "aac",
}

// ParseMimeType splits "video/webm;codecs=vp9,opus" into the container type
// and its codec list.
func ParseMimeType(mimeType string) (string, []string) {
	container, params, err := mime.ParseMediaType(mimeType)
	switch {
	case errors.Is(err, mime.ErrInvalidMediaParameter):
		// Unquoted codec lists are not RFC 2045 tokens.
		params = looseParams(mimeType)
	case err != nil:
		container, _, _ = strings.Cut(mimeType, ";")
		return strings.ToLower(strings.TrimSpace(container)), nil
	}

	var codecs []string
	for _, c := range strings.Split(params["codecs"], ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if i := strings.IndexByte(c, '.'); i > 0 {
			c = c[:i]
		}
		if c != "" {
			codecs = append(codecs, c)
		}
	}
	return container, codecs
}

func looseParams(mimeType string) map[string]string {
	params := make(map[string]string)
	fields := strings.Split(mimeType, ";")
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(value, `"' `)
	}
	return params
}

type encoding struct {
	format string
	video  string
	audio  string
}

func resolve(mimeType string) (encoding, error) {
	container, codecs := ParseMimeType(mimeType)
	format, ok := containers[container]
	if !ok {
		return encoding{}, fmt.Errorf("unsupported container %q", container)
	}
	enc := encoding{format: format}
	for _, c := range codecs {
		if v, ok := videoEncoders[c]; ok {
			enc.video = v
			continue
		}
		if a, ok := audioEncoders[c]; ok {
			enc.audio = a
			continue
		}
		return encoding{}, fmt.Errorf("unsupported codec %q", c)
	}
	return enc, nil
}

// FFmpegConfig configures the ffmpeg capture primitive.
type FFmpegConfig struct {
	Binary      string        // defaults to "ffmpeg"
	FrameRate   int           // input rate of frame-backed video
	StopTimeout time.Duration // grace period before the encoder is killed
	// Encoders overrides probing `ffmpeg -encoders` when non-nil.
	Encoders []string
	Logger   *zap.Logger
}

// FFmpegFactory builds primitives that pipe the composite stream through an
// ffmpeg process and collect its container output.
type FFmpegFactory struct {
	cfg    FFmpegConfig
	logger *zap.Logger

	once     sync.Once
	encoders map[string]bool
}

// NewFFmpegFactory creates an FFmpegFactory.
func NewFFmpegFactory(cfg FFmpegConfig) *FFmpegFactory {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &FFmpegFactory{cfg: cfg, logger: cfg.Logger}
}

func (f *FFmpegFactory) available() map[string]bool {
	f.once.Do(func() {
		f.encoders = make(map[string]bool)
		if f.cfg.Encoders != nil {
			for _, e := range f.cfg.Encoders {
				f.encoders[e] = true
			}
			return
		}
		out, err := exec.Command(f.cfg.Binary, "-hide_banner", "-encoders").Output()
		if err != nil {
			f.logger.Warn("probe encoders", zap.Error(err))
			return
		}
		f.encoders = parseEncoders(out)
	})
	return f.encoders
}

// parseEncoders reads the `ffmpeg -encoders` table, e.g.
// " V....D libvpx-vp9           libvpx VP9".
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	table := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "------") {
			table = true
			continue
		}
		if !table {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// IsTypeSupported reports whether mimeType names a known container whose
// codecs have encoders in the local ffmpeg.
func (f *FFmpegFactory) IsTypeSupported(mimeType string) bool {
	enc, err := resolve(mimeType)
	if err != nil {
		return false
	}
	available := f.available()
	if len(available) == 0 {
		return false
	}
	for _, e := range []string{enc.video, enc.audio} {
		if e != "" && !available[e] {
			return false
		}
	}
	return true
}

// New builds a primitive for stream. An empty Options.MimeType records
// FallbackMimeType with ffmpeg's default codecs.
func (f *FFmpegFactory) New(stream *media.Stream, opts Options, events Events) (Primitive, error) {
	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = FallbackMimeType
	}
	enc, err := resolve(mimeType)
	if err != nil {
		return nil, err
	}
	args, frames, err := buildArgs(stream, enc, f.cfg.FrameRate)
	if err != nil {
		return nil, err
	}
	return &ffmpegCapture{
		binary:   f.cfg.Binary,
		args:     args,
		frames:   frames,
		mimeType: mimeType,
		events:   events,
		timeout:  f.cfg.StopTimeout,
		logger:   f.logger,
	}, nil
}

// buildArgs lays out ffmpeg inputs as: video first, then every audio leaf.
// A frame-backed video track is read from stdin as MJPEG.
func buildArgs(stream *media.Stream, enc encoding, frameRate int) ([]string, media.FrameSource, error) {
	video := stream.VideoTracks()
	audio := stream.AudioTracks()
	if len(video) == 0 && len(audio) == 0 {
		return nil, nil, errors.New("stream has no live tracks")
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	var frames media.FrameSource
	input := 0
	var maps []string

	if len(video) > 0 {
		v := video[0]
		switch {
		case v.Frames != nil:
			frames = v.Frames
			args = append(args,
				"-use_wallclock_as_timestamps", "1",
				"-f", "mjpeg",
				"-framerate", strconv.Itoa(frameRate),
				"-i", "pipe:0",
			)
		case v.Input.Device != "":
			args = appendInput(args, v.Input)
		default:
			return nil, nil, fmt.Errorf("video track %q has no readable input", v.Label)
		}
		maps = append(maps, "-map", fmt.Sprintf("%d:v", input))
		input++
	}

	var leaves []*media.Track
	for _, t := range audio {
		if len(t.Sources) > 0 {
			leaves = append(leaves, t.Sources...)
		} else {
			leaves = append(leaves, t)
		}
	}
	var audioLabels []string
	for _, t := range leaves {
		if t.Input.Device == "" {
			return nil, nil, fmt.Errorf("audio track %q has no readable input", t.Label)
		}
		args = appendInput(args, t.Input)
		audioLabels = append(audioLabels, fmt.Sprintf("[%d:a]", input))
		input++
	}

	switch len(audioLabels) {
	case 0:
	case 1:
		maps = append(maps, "-map", strings.Trim(audioLabels[0], "[]"))
	default:
		filter := fmt.Sprintf("%samix=inputs=%d:duration=longest[aout]", strings.Join(audioLabels, ""), len(audioLabels))
		args = append(args, "-filter_complex", filter)
		maps = append(maps, "-map", "[aout]")
	}

	args = append(args, maps...)
	if enc.video != "" && len(video) > 0 {
		args = append(args, "-c:v", enc.video)
		if enc.video == "libvpx-vp9" || enc.video == "libvpx" {
			args = append(args, "-deadline", "realtime", "-cpu-used", "8")
		}
	}
	if enc.audio != "" && len(audioLabels) > 0 {
		args = append(args, "-c:a", enc.audio)
	}
	if enc.format == "mp4" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	args = append(args, "-f", enc.format, "pipe:1")

	return args, frames, nil
}

func appendInput(args []string, in media.Input) []string {
	if in.Format != "" {
		args = append(args, "-f", in.Format)
	}
	return append(args, "-i", in.Device)
}

type ffmpegCapture struct {
	binary   string
	args     []string
	frames   media.FrameSource
	mimeType string
	events   Events
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
	unsub    func()
	done     chan struct{}
}

func (c *ffmpegCapture) MimeType() string {
	return c.mimeType
}

func (c *ffmpegCapture) Start() error {
	cmd := exec.Command(c.binary, c.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stdin io.WriteCloser
	if c.frames != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	c.logger.Debug("starting encoder", zap.Strings("args", c.args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.done = make(chan struct{})
	if c.frames != nil {
		ch, unsub := c.frames.Subscribe()
		c.unsub = unsub
		go c.feed(ch, stdin)
	}
	c.mu.Unlock()

	go c.collect(cmd, stdout, stderr)
	return nil
}

func (c *ffmpegCapture) feed(frames <-chan []byte, stdin io.WriteCloser) {
	defer stdin.Close()
	for frame := range frames {
		if _, err := stdin.Write(frame); err != nil {
			return
		}
	}
}

func (c *ffmpegCapture) collect(cmd *exec.Cmd, stdout io.Reader, stderr *tailBuffer) {
	defer close(c.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 && c.events.OnData != nil {
			c.events.OnData(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			break
		}
	}
	waitErr := cmd.Wait()

	c.mu.Lock()
	stopping := c.stopping
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}

	switch {
	case stopping || waitErr == nil:
		if c.events.OnStop != nil {
			c.events.OnStop()
		}
	default:
		err := fmt.Errorf("encoder exited: %w", waitErr)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("encoder exited: %w: %s", waitErr, msg)
		}
		if c.events.OnError != nil {
			c.events.OnError(err)
		}
	}
}

// Stop ends the frame feed and interrupts the encoder so it writes the
// container trailer. It kills the encoder if it does not exit in time.
func (c *ffmpegCapture) Stop() error {
	c.mu.Lock()
	if c.cmd == nil {
		c.mu.Unlock()
		return errors.New("capture not started")
	}
	if c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	unsub := c.unsub
	c.unsub = nil
	cmd, done := c.cmd, c.done
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Debug("interrupt encoder", zap.Error(err))
	}

	go func() {
		select {
		case <-done:
		case <-time.After(c.timeout):
			c.logger.Warn("encoder did not stop, killing")
			_ = cmd.Process.Kill()
		}
	}()
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

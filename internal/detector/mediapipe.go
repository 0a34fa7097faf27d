package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ServiceScript is the file name of the Python hand landmark service.
const ServiceScript = "hand_service.py"

// ErrServiceNotFound is returned when the hand landmark service script cannot be located.
var ErrServiceNotFound = errors.New(ServiceScript + " not found")

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector is closed")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames are sent as length-prefixed JPEG; each frame yields one JSON line.
type MediaPipeDetector struct {
	config Config
	script string
	logger *zap.Logger

	mu     sync.Mutex
	proc   *service
	closed bool
}

// service is one running hand_service process.
type service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logged chan struct{}
}

// NewMediaPipeDetector locates the hand service. The Python process is
// started on the first Detect call.
func NewMediaPipeDetector(config Config, logger *zap.Logger) (*MediaPipeDetector, error) {
	script := locate(searchDirs("scripts"), ServiceScript)
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MediaPipeDetector{
		config: config.withDefaults(),
		script: script,
		logger: logger.Named("detector"),
	}, nil
}

// Detect sends frame to the service and returns the hands it reports, in
// detection slot order.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	if d.proc == nil {
		proc, err := d.start()
		if err != nil {
			return nil, err
		}
		d.proc = proc
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.proc.stdin, buf.GetBytes()); err != nil {
		d.restart(err)
		return nil, err
	}

	line, err := d.proc.stdout.ReadBytes('\n')
	if err != nil {
		err = fmt.Errorf("read response: %w", err)
		d.restart(err)
		return nil, err
	}

	return parseResponse(line)
}

// writeFrame writes one 4-byte big-endian length header followed by data.
func writeFrame(w io.Writer, data []byte) error {
	msg := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(msg, uint32(len(data)))
	copy(msg[4:], data)
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// parseResponse decodes one service line into hand observations, keeping the
// service's slot order.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("hand service: %s", response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

// Close shuts down the Python process. It is safe to call more than once.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	d.logger.Info("hand service stopped")
	return err
}

// restart drops a broken process; the next Detect starts a fresh one.
func (d *MediaPipeDetector) restart(cause error) {
	d.logger.Warn("hand service failed, restarting on next frame", zap.Error(cause))
	if err := d.proc.stop(); err != nil {
		d.logger.Debug("hand service exit", zap.Error(err))
	}
	d.proc = nil
}

func (d *MediaPipeDetector) start() (*service, error) {
	python := locate(searchDirs("venv/bin"), "python")
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start hand service: %w", err)
	}

	proc := &service{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logged: make(chan struct{}),
	}
	go func() {
		defer close(proc.logged)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			d.logger.Debug("hand service", zap.String("stderr", scanner.Text()))
		}
	}()

	d.logger.Info("hand service started", zap.String("python", python), zap.String("script", d.script))
	return proc, nil
}

// stop closes stdin so the service exits on EOF, then reaps it.
func (p *service) stop() error {
	p.stdin.Close()
	<-p.logged
	return p.cmd.Wait()
}

// searchDirs lists where bundled files are looked up, relative to the
// working directory, the executable and ~/.airchord.
func searchDirs(sub string) []string {
	dirs := []string{sub, filepath.Join("..", sub)}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), sub))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".airchord", sub))
	}
	return dirs
}

// locate returns the absolute path of the first dir/name that exists.
func locate(dirs []string, name string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand is one hand as reported by the service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	n := min(len(h.Points), NumLandmarks)

	lm := HandLandmarks{
		Points:     make(LandmarkSet, n),
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i, p := range h.Points[:n] {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}
	return lm
}

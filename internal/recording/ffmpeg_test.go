package recording

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/airchord/internal/media"
)

func TestParseMimeType(t *testing.T) {
	tests := []struct {
		in            string
		wantContainer string
		wantCodecs    []string
	}{
		{in: "video/webm;codecs=vp9,opus", wantContainer: "video/webm", wantCodecs: []string{"vp9", "opus"}},
		{in: "video/webm", wantContainer: "video/webm"},
		{in: `video/mp4; codecs="avc1.42E01E, mp4a.40.2"`, wantContainer: "video/mp4", wantCodecs: []string{"avc1", "mp4a"}},
		{in: "Video/WebM;codecs=VP8", wantContainer: "video/webm", wantCodecs: []string{"vp8"}},
		{in: "video/webm; x=1; codecs=vp9", wantContainer: "video/webm", wantCodecs: []string{"vp9"}},
		{in: "video/webm; x=1; codecs=vp9,opus", wantContainer: "video/webm", wantCodecs: []string{"vp9", "opus"}},
		{in: `video/webm; codecs="vp8, vorbis"; x=1`, wantContainer: "video/webm", wantCodecs: []string{"vp8", "vorbis"}},
		{in: "", wantContainer: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			container, codecs := ParseMimeType(tt.in)
			if container != tt.wantContainer {
				t.Errorf("container = %q, want %q", container, tt.wantContainer)
			}
			if strings.Join(codecs, ",") != strings.Join(tt.wantCodecs, ",") {
				t.Errorf("codecs = %v, want %v", codecs, tt.wantCodecs)
			}
		})
	}
}

func TestFFmpegFactory_IsTypeSupported(t *testing.T) {
	f := NewFFmpegFactory(FFmpegConfig{Encoders: []string{"libvpx-vp9", "libopus"}})

	tests := []struct {
		mime string
		want bool
	}{
		{mime: "video/webm;codecs=vp9,opus", want: true},
		{mime: "video/webm", want: true},
		{mime: "video/webm;codecs=vp8,opus", want: false},
		{mime: "video/mp4;codecs=avc1", want: false},
		{mime: "video/ogg", want: false},
		{mime: "video/webm;codecs=theora", want: false},
	}
	for _, tt := range tests {
		if got := f.IsTypeSupported(tt.mime); got != tt.want {
			t.Errorf("IsTypeSupported(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D libopus              libopus Opus (codec opus)
`)
	got := parseEncoders(out)
	if !got["libvpx-vp9"] || !got["libopus"] {
		t.Errorf("parseEncoders() = %v", got)
	}
	if got["="] || got["Video"] {
		t.Error("legend lines should be skipped")
	}
}

type nopFrames struct{}

func (nopFrames) Subscribe() (<-chan []byte, func()) {
	return make(chan []byte), func() {}
}

func TestBuildArgs(t *testing.T) {
	enc, err := resolve(DefaultMimeType)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	t.Run("frames video with mixed audio", func(t *testing.T) {
		synth := media.NewDeviceTrack(media.Audio, "synth", media.Input{Format: "pulse", Device: "synth.monitor"}, nil)
		mic := media.NewDeviceTrack(media.Audio, "mic", media.Input{Format: "pulse", Device: "default"}, nil)
		mixed := &media.Track{Kind: media.Audio, Label: "mix", Sources: []*media.Track{synth, mic}}
		stream := media.NewStream(media.NewFrameTrack("camera", nopFrames{}, nil), mixed)

		args, frames, err := buildArgs(stream, enc, 30)
		if err != nil {
			t.Fatalf("buildArgs() error = %v", err)
		}
		if frames == nil {
			t.Error("frame source should be returned for stdin feeding")
		}
		joined := strings.Join(args, " ")
		for _, want := range []string{
			"-f mjpeg -framerate 30 -i pipe:0",
			"-f pulse -i synth.monitor",
			"-f pulse -i default",
			"[1:a][2:a]amix=inputs=2:duration=longest[aout]",
			"-map 0:v -map [aout]",
			"-c:v libvpx-vp9",
			"-c:a libopus",
			"-f webm pipe:1",
		} {
			if !strings.Contains(joined, want) {
				t.Errorf("args missing %q\n%s", want, joined)
			}
		}
	})

	t.Run("single audio", func(t *testing.T) {
		stream := media.NewStream(
			media.NewDeviceTrack(media.Video, "camera", media.Input{Format: "v4l2", Device: "/dev/video0"}, nil),
			media.NewDeviceTrack(media.Audio, "synth", media.Input{Format: "lavfi", Device: "sine"}, nil),
		)
		args, frames, err := buildArgs(stream, encoding{format: "webm"}, 30)
		if err != nil {
			t.Fatalf("buildArgs() error = %v", err)
		}
		if frames != nil {
			t.Error("device video should not use stdin")
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-map 0:v -map 1:a") {
			t.Errorf("unexpected maps: %s", joined)
		}
		if strings.Contains(joined, "-c:v") || strings.Contains(joined, "-c:a") {
			t.Errorf("default options should not force codecs: %s", joined)
		}
	})

	t.Run("unaddressable audio", func(t *testing.T) {
		stream := media.NewStream(media.NewDeviceTrack(media.Audio, "ghost", media.Input{}, nil))
		if _, _, err := buildArgs(stream, enc, 30); err == nil {
			t.Error("expected error for audio without input")
		}
	})

	t.Run("empty stream", func(t *testing.T) {
		if _, _, err := buildArgs(media.NewStream(), enc, 30); err == nil {
			t.Error("expected error for empty stream")
		}
	})
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 10, 19, 14, 3, 5, 0, time.UTC)

	tests := []struct {
		mime string
		want string
	}{
		{mime: DefaultMimeType, want: "airchord-2026-10-19T14-03-05.webm"},
		{mime: "video/mp4", want: "airchord-2026-10-19T14-03-05.mp4"},
		{mime: "application/octet-stream", want: "airchord-2026-10-19T14-03-05.webm"},
	}
	for _, tt := range tests {
		if got := Filename(at, tt.mime); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a := &Artifact{
		MimeType:  FallbackMimeType,
		Data:      []byte("webm bytes"),
		CreatedAt: time.Date(2026, 10, 19, 14, 3, 5, 0, time.UTC),
	}

	path, err := Export(a, dir)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Base(path) != "airchord-2026-10-19T14-03-05.webm" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "webm bytes" {
		t.Errorf("exported data = %q, %v", data, err)
	}

	if _, err := Export(nil, dir); err == nil {
		t.Error("expected error for nil artifact")
	}
}

func TestFFmpegCapture_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	stream := media.NewStream(
		media.NewDeviceTrack(media.Video, "test", media.Input{Format: "lavfi", Device: "testsrc=size=160x120:rate=10"}, nil),
		media.NewDeviceTrack(media.Audio, "tone", media.Input{Format: "lavfi", Device: "sine=frequency=440"}, nil),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	c := NewController(ControllerConfig{
		Factory:    NewFFmpegFactory(FFmpegConfig{}),
		OnArtifact: func(*Artifact) { wg.Done() },
		OnError:    func(err error) { t.Errorf("recording error: %v", err); wg.Done() },
	})

	if err := c.Start(stream); err != nil {
		t.Skipf("capture unavailable: %v", err)
	}
	time.Sleep(time.Second)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	wg.Wait()

	if a := c.Artifact(); a == nil || len(a.Data) == 0 {
		t.Error("expected a non-empty artifact")
	}
}

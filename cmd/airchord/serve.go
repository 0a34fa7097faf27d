package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/app"
	"github.com/ayusman/airchord/internal/capture"
	"github.com/ayusman/airchord/internal/config"
	"github.com/ayusman/airchord/internal/detector"
	"github.com/ayusman/airchord/internal/media"
	"github.com/ayusman/airchord/internal/recording"
	"github.com/ayusman/airchord/internal/server"
	"github.com/ayusman/airchord/internal/store"
	"github.com/ayusman/airchord/internal/synth"
	"github.com/ayusman/airchord/internal/tray"
)

type serveOptions struct {
	addr     string
	withTray bool
	audio    bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the camera, play chords and serve the local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.withTray, "tray", false, "show the system tray menu")
	cmd.Flags().BoolVar(&opts.audio, "enable-audio", false, "enable audio at startup")
	return cmd
}

// closingSynth is a session synth the process owns.
type closingSynth interface {
	app.Synth
	Close() error
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath, err := storePath(cfg)
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sy, closeDriver := openSynth(cfg, logger)
	defer closeDriver()
	defer sy.Close()

	var recorder recording.Factory
	if cfg.Recording.Enabled {
		recorder = recording.NewFFmpegFactory(recording.FFmpegConfig{
			Binary:    cfg.Recording.FFmpeg,
			FrameRate: cfg.FrameRate,
			Logger:    logger.Named("ffmpeg"),
		})
	}

	session, err := app.New(app.Config{
		Settings: cfg,
		Camera: capture.NewCamera(capture.CameraConfig{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.FrameRate,
		}),
		NewDetector: func() (detector.Detector, error) {
			return detector.NewMediaPipeDetector(detector.Config{
				MaxHands:        cfg.Detector.MaxHands,
				MinConfidence:   cfg.Detector.MinConfidence,
				MinTrackingConf: cfg.Detector.MinTracking,
			}, logger)
		},
		Synth:    sy,
		Recorder: recorder,
		Store:    st,
		Logger:   logger.Named("session"),
	})
	if err != nil {
		return err
	}

	// A failed camera leaves the API up so the status message is visible.
	if err := session.Setup(ctx); err != nil {
		logger.Error("session setup failed", zap.Error(err))
	}
	defer session.Teardown()

	if opts.audio {
		if err := session.EnableAudio(); err != nil {
			logger.Warn("enable audio", zap.Error(err))
		}
	}

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Session:   session,
		Frames:    session.Tap(),
		Logger:    logger.Named("http"),
	})

	if !opts.withTray {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		logger.Info("shutting down")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
	}()

	t := newTray(ctx, session, previewURL(addr), logger)
	t.OnQuit(cancel)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()

	cancel()
	if err := <-errCh; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

// openSynth opens the configured MIDI port, falling back to a silent synth
// when no driver or port is available. The returned func closes the driver.
func openSynth(cfg config.Config, logger *zap.Logger) (closingSynth, func()) {
	monitor := media.Input{Format: cfg.Synth.MonitorFormat, Device: cfg.Synth.MonitorDevice}
	silent := func(reason error) (closingSynth, func()) {
		logger.Warn("MIDI output unavailable, chords will not sound", zap.Error(reason))
		return synth.NewSilent(monitor, logger.Named("synth")), func() {}
	}

	drv, err := rtmididrv.New()
	if err != nil {
		return silent(err)
	}
	closeDriver := func() { drv.Close() }

	outs, err := drv.Outs()
	if err != nil {
		closeDriver()
		return silent(err)
	}
	out, err := synth.SelectPort(outs, cfg.Synth.MIDIPort)
	if err != nil {
		closeDriver()
		return silent(err)
	}
	m, err := synth.NewMIDI(out, synth.MIDIConfig{
		Channel:  cfg.Synth.Channel,
		Velocity: cfg.Synth.Velocity,
		Monitor:  monitor,
		Logger:   logger.Named("synth"),
	})
	if err != nil {
		closeDriver()
		return silent(err)
	}
	logger.Info("MIDI output opened", zap.String("port", out.String()))
	return m, closeDriver
}

func newTray(ctx context.Context, session *app.Session, url string, logger *zap.Logger) *tray.Tray {
	t := tray.New()
	t.OnEnableAudio(session.EnableAudio)
	t.OnRecord(func(start bool) error {
		if start {
			return session.StartRecording()
		}
		err := session.StopRecording()
		if errors.Is(err, recording.ErrNotRecording) {
			return nil
		}
		return err
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn("open browser", zap.Error(err))
		}
	})

	events, cancel := session.Subscribe()
	go func() {
		defer cancel()
		t.SetStatus(session.Status())
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				t.SetStatus(session.Status())
			}
		}
	}()
	return t
}

func previewURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

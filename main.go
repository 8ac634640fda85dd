package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediascan/internal/backend/ffmpeg"
	"mediascan/internal/filesystem"
	"mediascan/internal/logging"
	"mediascan/internal/memory"
	"mediascan/internal/metrics"
	"mediascan/internal/result"
	"mediascan/internal/scanner"
	"mediascan/internal/startup"
	"mediascan/internal/status"
	"mediascan/internal/store"
	"mediascan/internal/thumbnail"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func main() {
	startTime := time.Now()

	configPath := flag.String("config", os.Getenv("MEDIASCAN_CONFIG"), "path to a YAML config file")
	dump := flag.Bool("dump", false, "log every scan result")
	flag.Parse()
	if args := flag.Args(); len(args) > 0 {
		os.Setenv("MEDIASCAN_PATHS", strings.Join(args, ","))
	}

	config, err := startup.LoadConfig(*configPath)
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.Log.File != "" {
		logging.Configure(logging.FileConfig{
			FilePath:   config.Log.File,
			MaxSizeMB:  config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
			MaxAgeDays: config.Log.MaxAgeDays,
			AlsoStderr: true,
		})
		defer logging.Close()
	}
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	memory.ConfigureFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, *dump, startTime); err != nil {
		logging.Error("%v", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, config *startup.Config, dump bool, startTime time.Time) error {
	var st *store.Store
	dbStart := time.Now()
	if config.DatabasePath != "" {
		var err error
		st, err = store.New(ctx, config.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
		defer st.Close()
	}
	startup.LogStoreInit(config.DatabasePath, time.Since(dbStart))

	b, err := ffmpeg.New(config.FFmpeg)
	startup.LogBackendInit(err)
	if err != nil {
		return err
	}

	if len(config.ThumbnailSpecs) > 0 && config.UseVips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using imaging: %v", err)
		} else {
			defer thumbnail.ShutdownVips()
		}
	}
	startup.LogThumbnailInit(config.ThumbnailSpecs, thumbnail.IsVipsAvailable())

	var writer *thumbnail.Writer
	if len(config.ThumbnailSpecs) > 0 {
		writer, err = thumbnail.NewWriter(config.ThumbnailDir, config.ThumbnailSpecs)
		if err != nil {
			return err
		}
	}

	a := newApp(writer, dump, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
	monitor := memory.NewMonitor(memory.DefaultConfig())
	opts := []scanner.Option{scanner.WithGate(monitor)}
	if st != nil {
		opts = append(opts, scanner.WithStore(st))
	}
	sess, err := scanner.New(b, a.callbacks(), opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := configure(sess, config); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if config.MetricsAddr != "" {
		srv := status.NewServer(config.MetricsAddr, sess)
		startup.LogStatusServer(srv.Router(), srv.Addr())
		g.Go(func() error { return srv.Serve(gctx) })
	}
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	if st != nil {
		collector := metrics.NewCollector(st, time.Minute)
		g.Go(func() error {
			collector.Run(gctx)
			return nil
		})
	}

	startup.LogScanStarted(len(config.Paths), config.Async, time.Since(startTime))
	g.Go(func() error {
		defer cancel()
		return drive(gctx, sess, config)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		startup.LogShutdownInitiated("signal")
		startup.LogShutdownStep("Closing scan session")
		sess.Close()
		startup.LogShutdownStepComplete("Scan session closed")
		startup.LogShutdownComplete()
	}
	return err
}

// configure registers the configured paths and rules with sess.
func configure(sess *scanner.Session, config *startup.Config) error {
	for _, p := range config.Paths {
		if err := sess.AddPath(p); err != nil {
			return fmt.Errorf("add path %s: %w", p, err)
		}
	}
	for _, ext := range config.IgnoreExtensions {
		if err := sess.AddIgnoreExtension(ext); err != nil {
			return fmt.Errorf("ignore extension %s: %w", ext, err)
		}
	}
	for _, dir := range config.IgnoreDirectories {
		if err := sess.AddIgnoreDirectory(dir); err != nil {
			return fmt.Errorf("ignore directory %s: %w", dir, err)
		}
	}
	for _, spec := range config.ThumbnailSpecs {
		if err := sess.AddThumbnailSpec(spec); err != nil {
			return fmt.Errorf("thumbnail spec %s: %w", spec, err)
		}
	}
	if err := sess.SetFlags(scanFlags(config)); err != nil {
		return err
	}
	if err := sess.SetAsync(config.Async); err != nil {
		return err
	}
	return sess.SetProgressInterval(config.ProgressInterval)
}

func scanFlags(config *startup.Config) result.Flags {
	var f result.Flags
	if config.Rescan {
		f |= result.FlagRescanAll
	}
	if config.Clear {
		f |= result.FlagClearPriorState
	}
	if config.UseExtension {
		f |= result.FlagUseExtension
	}
	return f
}

// drive runs the scan, pumps async results and, in watch mode, keeps
// pumping changed files until ctx is cancelled.
func drive(ctx context.Context, sess *scanner.Session, config *startup.Config) error {
	if err := sess.Scan(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if config.Async {
		done := make(chan struct{})
		go func() {
			sess.Wait()
			close(done)
		}()
	pump:
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sess.Ready():
				sess.Pump()
			case <-done:
				sess.Pump()
				break pump
			}
		}
	}

	if !config.Watch {
		return nil
	}
	for _, p := range config.Paths {
		if err := sess.Watch(p); err != nil {
			logging.Warn("Cannot watch %s: %v", p, err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			sess.StopWatching()
			return nil
		case <-sess.Ready():
			sess.Pump()
		}
	}
}

// app holds what the callbacks need.
type app struct {
	writer *thumbnail.Writer
	dump   bool
	out    io.Writer
	tty    bool
}

func newApp(writer *thumbnail.Writer, dump bool, out io.Writer, tty bool) *app {
	return &app{writer: writer, dump: dump, out: out, tty: tty}
}

func (a *app) callbacks() scanner.Callbacks {
	return scanner.Callbacks{
		OnResult:     a.onResult,
		OnError:      a.onError,
		OnProgress:   a.onProgress,
		OnBackground: a.onBackground,
	}
}

func (a *app) onResult(_ *scanner.Session, r *result.Result) {
	if a.dump {
		result.Dump(r)
	} else {
		logging.Debug("Scanned %s (%s)", r.Path, r.MimeType)
	}
	a.writeThumbnails(r)
}

func (a *app) onBackground(s *scanner.Session, r *result.Result) {
	logging.Info("Changed file scanned: %s", r.Path)
	a.onResult(s, r)
}

func (a *app) onError(_ *scanner.Session, e *result.Error) {
	logging.Warn("%v", e)
}

func (a *app) onProgress(_ *scanner.Session, p scanner.Progress) {
	if !a.tty {
		if p.Finished() {
			logging.Info("%s: done, %d files in %v", p.Phase, p.Done, p.Elapsed.Round(time.Millisecond))
		}
		return
	}
	fmt.Fprintf(a.out, "\r\033[K%s", progressLine(p))
	if p.Finished() {
		fmt.Fprintln(a.out)
	}
}

func (a *app) writeThumbnails(r *result.Result) {
	if a.writer == nil {
		return
	}
	paths, err := a.writer.Write(r)
	if err != nil {
		logging.Warn("Thumbnail error: %v", err)
	}
	for _, p := range paths {
		logging.Debug("Thumbnail for %s: %s", r.Path, p)
	}
}

func progressLine(p scanner.Progress) string {
	if p.Finished() {
		return fmt.Sprintf("%s: done, %d files (%.1f/s)", p.Phase, p.Done, p.Rate)
	}
	return fmt.Sprintf("%s: %s (%d files, %.1f/s)", p.Phase, p.CurrentItem, p.Done, p.Rate)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/viteo/pkg/adapters/ggrenderer"
	"github.com/user/viteo/pkg/adapters/pngsink"
	"github.com/user/viteo/pkg/contactsheet"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/report"
	"github.com/user/viteo/pkg/session"
	"github.com/user/viteo/pkg/viteo"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     l10n.T("Show stream properties of video files"),
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return errors.New(l10n.T("At least one video argument is required"))
			}
			e, err := setup(c)
			if err != nil {
				return err
			}

			// Each file gets its own session; results print in argument order.
			infos := make([]ports.VideoInfo, len(paths))
			g, _ := errgroup.WithContext(c.Context)
			g.SetLimit(runtime.NumCPU())
			for i, path := range paths {
				i, path := i, path
				g.Go(func() error {
					s, err := e.extractor.Open(path)
					if err != nil {
						return err
					}
					infos[i] = s.Info()
					return s.Close()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for i, path := range paths {
				in := infos[i]
				fmt.Println(l10n.F("%s: %s %dx%d, %.3f fps, %d frames, %.3f s",
					path, in.Codec, in.Width, in.Height, in.FPS, in.FrameCount, in.Duration))
			}
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     l10n.T("Write frames of a time range as image files"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "start", Usage: l10n.T("Range start in seconds")},
			&cli.Float64Flag{Name: "end", Usage: l10n.T("Range end in seconds (0 = end of video)")},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: l10n.T("Output directory")},
			&cli.IntFlag{Name: "every", Value: 1, Usage: l10n.T("Keep every Nth frame")},
			&cli.IntFlag{Name: "jpeg", Usage: l10n.T("Write JPEG at this quality instead of PNG")},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New(l10n.T("A video argument is required"))
			}
			e, err := setup(c)
			if err != nil {
				return err
			}

			outDir := e.cfg.OutputDir
			if c.IsSet("out") {
				outDir = c.String("out")
			}
			if err := e.fs.MkdirAll(outDir); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			var opts []pngsink.Option
			if q := c.Int("jpeg"); q > 0 {
				opts = append(opts, pngsink.WithJPEG(q))
			}
			sink := pngsink.New(outDir, e.fs, ggrenderer.New(), opts...)
			every := int64(max(c.Int("every"), 1))

			st, err := e.extractor.StreamFrames(c.Context, path, c.Float64("start"), c.Float64("end"))
			if err != nil {
				return err
			}
			defer st.Close()

			e.log.Info(l10n.F("Extracting %s to %s...", path, outDir))
			saved, err := exportFrames(c.Context, st, sink, every)
			if err != nil {
				return err
			}

			e.log.Info(l10n.F("Saved %d frames to %s", saved, outDir))
			return nil
		},
	}
}

// exportFrames saves every Nth frame of st to sink, encoding on all CPUs. Each pool
// slot is released once its frame is written.
func exportFrames(ctx context.Context, st *viteo.Stream, sink ports.FrameSink, every int64) (int, error) {
	saved := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for {
		it, err := st.Next(gctx)
		if err != nil {
			// A failed write cancels gctx; report the write error instead.
			if werr := g.Wait(); werr != nil {
				return saved, werr
			}
			return saved, err
		}
		if it.End {
			break
		}
		if it.Frame.Number%every != 0 {
			it.Release()
			continue
		}
		saved++
		g.Go(func() error {
			defer it.Release()
			return sink.SaveFrame(it.Frame.Number, it.Frame.Image())
		})
	}
	if err := g.Wait(); err != nil {
		return saved, err
	}
	return saved, st.Err()
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     l10n.T("Measure extraction throughput of each delivery mode"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "mode", Aliases: []string{"m"}, Value: cli.NewStringSlice("bulk", "stream", "queue"), Usage: l10n.T("Modes to run (bulk, stream, queue)")},
			&cli.StringFlag{Name: "report", Aliases: []string{"r"}, Usage: l10n.T("Write a Markdown summary to this file")},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New(l10n.T("A video argument is required"))
			}
			e, err := setup(c)
			if err != nil {
				return err
			}

			s, err := e.extractor.Open(path)
			if err != nil {
				return err
			}
			in := s.Info()
			s.Close()

			cfg := e.extractor.Config()
			b := report.NewBuilder().
				WithVideo(report.VideoInfo{
					Path:       path,
					Codec:      in.Codec,
					Width:      in.Width,
					Height:     in.Height,
					FPS:        in.FPS,
					FrameCount: in.FrameCount,
					Duration:   in.Duration,
					FileSize:   fileSize(path),
				}).
				WithSettings(report.Settings{
					Engine:        string(cfg.Engine),
					BatchSize:     cfg.BatchSize,
					InternalBatch: cfg.InternalBatch,
					QueueCapacity: cfg.QueueCapacity,
					PoolSize:      cfg.PoolSize,
					Format:        cfg.Format.String(),
				})

			for _, mode := range c.StringSlice("mode") {
				e.log.Info(l10n.F("Running %s mode...", mode))
				r := runMode(c.Context, e.extractor, mode, path)
				b.AddResult(r)
				if r.Err != nil {
					e.log.Warn(l10n.F("%s mode failed: %v", mode, r.Err))
					continue
				}
				fmt.Println(l10n.F("%-8s %6d frames in %8.3f s  %8.1f fps  %.1fx real time",
					mode, r.Frames, r.Elapsed.Seconds(), r.FPS(), r.Speedup(in.FPS)))
			}

			if out := c.String("report"); out != "" {
				w := report.NewWriter(report.NewMarkdownFormatter(
					report.WithTranslator(l10n.T),
					report.WithVersion(version),
				), e.fs)
				if err := w.Write(out, b.Build()); err != nil {
					e.log.Warn(l10n.F("Failed to write summary: %s", err.Error()))
				} else {
					e.log.Info(l10n.F("Summary saved to %s", out))
				}
			}
			return nil
		},
	}
}

// runMode times one full decode of path in the given delivery mode.
func runMode(ctx context.Context, x *viteo.Extractor, mode, path string) report.Result {
	r := report.Result{Mode: mode}
	began := time.Now()

	switch mode {
	case "bulk":
		all, err := x.ExtractAll(ctx, path)
		if all != nil {
			r.Frames = int64(all.Len())
			r.Bytes = int64(len(all.Bytes()))
		}
		r.Err = err
	case "stream":
		r.Frames, r.Err = x.StreamBatches(ctx, path, 0, 0, func(frames []frame.Frame) error {
			for _, f := range frames {
				r.Bytes += int64(f.Len())
			}
			return nil
		})
	case "queue":
		st, err := x.StreamFrames(ctx, path, 0, 0)
		if err != nil {
			r.Err = err
			break
		}
		for {
			it, err := st.Next(ctx)
			if err != nil {
				r.Err = err
				break
			}
			if it.End {
				r.Err = st.Err()
				break
			}
			r.Frames++
			r.Bytes += int64(it.Frame.Len())
			it.Release()
		}
		if err := st.Close(); err != nil && r.Err == nil {
			r.Err = err
		}
	default:
		r.Err = fmt.Errorf("unknown mode %q", mode)
	}

	r.Elapsed = time.Since(began)
	return r
}

func sheetCommand() *cli.Command {
	return &cli.Command{
		Name:      "sheet",
		Usage:     l10n.T("Render evenly spaced frames into a contact sheet"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: l10n.T("Output directory")},
			&cli.StringFlag{Name: "name", Value: "sheet", Usage: l10n.T("Sheet file name without extension")},
			&cli.IntFlag{Name: "frames", Aliases: []string{"n"}, Usage: l10n.T("Number of tiles")},
			&cli.IntFlag{Name: "columns", Usage: l10n.T("Number of columns")},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New(l10n.T("A video argument is required"))
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			if c.IsSet("frames") {
				e.cfg.Sheet.Frames = c.Int("frames")
			}
			if c.IsSet("columns") {
				e.cfg.Sheet.Columns = c.Int("columns")
			}
			outDir := e.cfg.OutputDir
			if c.IsSet("out") {
				outDir = c.String("out")
			}

			renderer := ggrenderer.New()
			sheet := contactsheet.New(renderer, e.cfg.SheetOptions(), e.log)
			img, err := renderSheet(c.Context, e.extractor, path, e.cfg.Sheet.Frames, sheet, e.log)
			if err != nil {
				return err
			}
			if err := e.fs.MkdirAll(outDir); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			var sink ports.FrameSink = pngsink.New(outDir, e.fs, renderer)
			if err := sink.SaveSheet(c.String("name"), img); err != nil {
				return err
			}
			e.log.Info(l10n.F("Contact sheet saved to %s", outDir))
			return nil
		},
	}
}

// renderSheet decodes count evenly spaced frames of path and lays them out.
func renderSheet(ctx context.Context, x *viteo.Extractor, path string, count int, sheet *contactsheet.Renderer, log ports.Logger) (image.Image, error) {
	s, err := x.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	frames, err := contactsheet.Collect(ctx, s, contactsheet.Pick(s.TotalFrames(), count))
	if errors.Is(err, session.ErrEndOfStream) && len(frames) > 0 {
		// The container frame count is an upper bound.
		log.Warn(l10n.F("Stream ended early, using %d frames", len(frames)))
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return sheet.Render(ctx, frames)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

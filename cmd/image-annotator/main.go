package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/logging"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/bridge"
	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/suggest"
	"github.com/menta2k/image-annotator/pkg/types"
)

func main() {
	var in, annsPath, cfgPath, backend, url, model string
	var overlayDir, cropsDir, savePath, serveAddr, logMode, aspect string
	var width, height float64
	var checkVision bool

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&annsPath, "annotations", "", "JSON file with initial annotations")
	flag.StringVar(&cfgPath, "config", "", "config file (yaml/json/toml); defaults to the user config path")
	flag.StringVar(&backend, "suggest", "", "pre-annotate with a backend: ollama, llamacpp or saliency")
	flag.StringVar(&url, "url", "", "vision server URL (defaults per backend)")
	flag.StringVar(&model, "model", "", "vision model name (overrides config)")
	flag.StringVar(&overlayDir, "overlay", "", "write the annotated image into this directory")
	flag.StringVar(&cropsDir, "crops", "", "write one crop per annotation into this directory")
	flag.StringVar(&aspect, "aspect", "", "crop aspect ratio: square|portrait|landscape|widescreen|instagram|story|W:H (overrides config)")
	flag.StringVar(&savePath, "save", "", "write the final annotations to this JSON file")
	flag.StringVar(&serveAddr, "serve", "", "serve the HTTP/websocket bridge on this address until interrupted")
	flag.Float64Var(&width, "width", 0, "container width (defaults to config stage width)")
	flag.Float64Var(&height, "height", 0, "container height (defaults to config stage height)")
	flag.StringVar(&logMode, "log", "", "log mode: debug|release|silent (overrides config)")
	flag.BoolVar(&checkVision, "check", false, "with -suggest, ask the model to describe the image before suggesting")

	flag.Parse()
	if in == "" {
		log.Fatalf("usage: %s -in input.jpg|URL [-annotations seeds.json] [-suggest ollama|llamacpp|saliency] [-serve :8090] [-overlay dir] [-crops dir] [-save out.json]", filepath.Base(os.Args[0]))
	}
	if err := checkSource(in); err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	if cfgPath == "" {
		cfgPath = config.GetConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if logMode != "" {
		cfg.Log.Mode = logMode
	}
	if width > 0 {
		cfg.Stage.Width = width
	}
	if height > 0 {
		cfg.Stage.Height = height
	}
	if model != "" {
		cfg.Suggest.Model = model
	}
	if aspect != "" {
		cfg.Output.Aspect = aspect
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logging.Sync(logger)

	if err := run(cfg, logger, options{
		source:     in,
		seeds:      annsPath,
		backend:    backend,
		url:        url,
		overlayDir: overlayDir,
		cropsDir:   cropsDir,
		savePath:   savePath,
		serveAddr:  serveAddr,
		check:      checkVision,
	}); err != nil {
		logger.Fatal("Annotator failed", zap.Error(err))
	}
}

type options struct {
	source, seeds, backend, url   string
	overlayDir, cropsDir, savePath string
	serveAddr                      string
	check                          bool
}

// checkSource rejects local paths that are missing or lack an image
// extension. URLs are left to the loader.
func checkSource(source string) error {
	if imageio.IsURL(source) {
		return nil
	}
	if !utils.FileExists(source) {
		return fmt.Errorf("%s does not exist or is a directory", source)
	}
	if !utils.IsImageFile(source) {
		return fmt.Errorf("%s is not an image file", source)
	}
	return nil
}

// fileSize returns the human-readable size of path, or "" when it cannot be read
func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return utils.FormatFileSize(info.Size())
}

func run(cfg *config.Config, logger *zap.Logger, o options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var initial []types.Annotation
	if o.seeds != "" {
		anns, err := utils.ReadAnnotations(o.seeds)
		if err != nil {
			return err
		}
		initial = anns
	}

	// Events are printed one JSON object per line and mirrored to the bridge.
	var (
		outMu  sync.Mutex
		enc    = json.NewEncoder(os.Stdout)
		server *bridge.Server
	)
	onChange := func(ev types.ChangeEvent) {
		outMu.Lock()
		if err := enc.Encode(ev); err != nil {
			logger.Warn("Failed to print change event", zap.Error(err))
		}
		outMu.Unlock()
		if server != nil {
			server.Publish(ev)
		}
	}

	loader := imageio.NewLoader(imageio.WithLogger(logger))
	opts := append(cfg.EngineOptions(),
		engine.WithLoader(loader),
		engine.WithLogger(logger),
		engine.WithOnChange(onChange),
	)
	ia := imageannotator.New(cfg.Stage.Width, cfg.Stage.Height, opts...)
	defer ia.Close()

	if o.serveAddr != "" {
		server = bridge.New(ia.Engine(),
			bridge.WithLogger(logger),
			bridge.WithVersion(imageannotator.Version),
			bridge.WithMode(cfg.Bridge.Mode),
		)
	}

	if err := ia.Open(ctx, o.source, initial); err != nil {
		return fmt.Errorf("failed to open %s: %w", o.source, err)
	}

	if o.backend != "" {
		url := o.url
		if url == "" && o.backend == cfg.Suggest.Backend {
			url = cfg.Suggest.URL
		}
		vc, err := suggest.NewClient(o.backend, url, logger)
		if err != nil {
			return err
		}
		sug := suggest.New(vc, cfg.SuggestSettings(), logger)
		if o.check {
			reply, err := sug.TestVision(ctx, ia.Engine().Image())
			if err != nil {
				return fmt.Errorf("vision check failed: %w", err)
			}
			logger.Info("Vision check", zap.String("model", cfg.Suggest.Model), zap.String("reply", reply))
		}
		res, err := ia.Suggest(ctx, sug)
		if err != nil {
			return fmt.Errorf("suggestion failed: %w", err)
		}
		logger.Info("Suggestions added",
			zap.Int("added", len(res.Annotations)),
			zap.Int("dropped", res.Dropped),
			zap.String("description", res.Description),
			zap.Strings("tags", res.Tags))
	}

	if o.serveAddr != "" {
		logger.Info("Serving bridge, press Ctrl+C to finish", zap.String("addr", o.serveAddr))
		if err := server.Run(ctx, o.serveAddr); err != nil {
			return err
		}
	}

	ia.Engine().Flush()
	return writeOutputs(cfg, logger, ia, o)
}

func writeOutputs(cfg *config.Config, logger *zap.Logger, ia *imageannotator.ImageAnnotator, o options) error {
	img := ia.Engine().Image()
	anns := ia.Annotations()
	exportOpts := cfg.OutputSettings()

	if o.overlayDir != "" {
		path, err := export.SaveOverlay(img, anns, ia.Engine().Style(), o.source, o.overlayDir, cfg.Output.Suffix, exportOpts)
		if err != nil {
			return err
		}
		logger.Info("Wrote overlay", zap.String("path", path), zap.String("size", fileSize(path)))
	}

	if o.cropsDir != "" {
		results, err := export.SaveCrops(img, anns, o.source, o.cropsDir, exportOpts)
		if err != nil {
			return err
		}
		for _, r := range results {
			logger.Info("Wrote crop", zap.String("id", r.ID), zap.String("path", r.Path), zap.String("size", fileSize(r.Path)))
		}
	}

	if o.savePath != "" {
		if err := utils.WriteAnnotations(o.savePath, anns); err != nil {
			return err
		}
		logger.Info("Saved annotations", zap.String("path", o.savePath), zap.Int("count", len(anns)))
	}
	return nil
}

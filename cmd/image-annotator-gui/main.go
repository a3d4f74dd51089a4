package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	imageannotator "github.com/menta2k/image-annotator"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/logging"
	"github.com/menta2k/image-annotator/internal/ui"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/bridge"
	"github.com/menta2k/image-annotator/pkg/imageio"
	"github.com/menta2k/image-annotator/pkg/suggest"
	"github.com/menta2k/image-annotator/pkg/types"
)

func main() {
	var in, annsPath, cfgPath, serveAddr, logMode string
	var noSuggest bool

	flag.StringVar(&in, "in", "", "image path or URL to open on start")
	flag.StringVar(&annsPath, "annotations", "", "JSON file with initial annotations")
	flag.StringVar(&cfgPath, "config", "", "config file (yaml/json/toml); defaults to the user config path")
	flag.StringVar(&serveAddr, "serve", "", "also serve the HTTP/websocket bridge on this address")
	flag.StringVar(&logMode, "log", "", "log mode: debug|release|silent (overrides config)")
	flag.BoolVar(&noSuggest, "nosuggest", false, "disable the vision model suggest action")
	flag.Parse()

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
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logging.Sync(logger)

	var initial []types.Annotation
	if annsPath != "" {
		if initial, err = utils.ReadAnnotations(annsPath); err != nil {
			logger.Fatal("Failed to read annotations", zap.Error(err))
		}
	}

	var suggester *suggest.Suggester
	if !noSuggest {
		vc, err := suggest.NewClient(cfg.Suggest.Backend, cfg.Suggest.URL, logger)
		if err != nil {
			logger.Warn("Suggestions disabled", zap.Error(err))
		} else {
			suggester = suggest.New(vc, cfg.SuggestSettings(), logger)
		}
	}

	loader := imageio.NewLoader(imageio.WithLogger(logger))
	app := ui.CreateApp(cfg, logger, loader, suggester)

	if serveAddr != "" {
		server := bridge.New(app.Engine(),
			bridge.WithLogger(logger),
			bridge.WithVersion(imageannotator.Version),
			bridge.WithMode(cfg.Bridge.Mode),
		)
		app.Observe(server.Publish)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := server.Run(ctx, serveAddr); err != nil {
				logger.Error("Bridge stopped", zap.Error(err))
			}
		}()
	}

	app.Run(in, initial)
}

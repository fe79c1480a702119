package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/marrow-forensics/marrow/internal/config"
	"github.com/marrow-forensics/marrow/internal/layer"
	"github.com/marrow-forensics/marrow/internal/logging"
	"github.com/marrow-forensics/marrow/internal/objects"
	"github.com/marrow-forensics/marrow/internal/symbols"
	"github.com/marrow-forensics/marrow/internal/winmem"
)

// PhysicalLayerName is the name the base image layer registers under.
const PhysicalLayerName = "physical"

type imageOptions struct {
	imagePath   string
	symbolsPath string
	table       string
	logLevel    string
}

func addImageFlags(fs *pflag.FlagSet, o *imageOptions) {
	fs.StringVarP(&o.imagePath, "image", "i", "", "path to the raw memory image")
	fs.StringVarP(&o.symbolsPath, "symbols", "s", "", "path to the intermediate symbol file")
	fs.StringVarP(&o.table, "table", "t", "nt", "name to register the symbol table under")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// appState is everything a command needs after setup: configuration, the
// analysis context and the open image layer.
type appState struct {
	cfg   *config.Config
	log   zerolog.Logger
	ctx   *objects.Context
	image *layer.FileLayer
}

func setup(o imageOptions) (*appState, error) {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, err
	}
	logCfg := logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	log := logging.New(logCfg)

	if o.imagePath == "" {
		return nil, fmt.Errorf("--image is required")
	}
	image, err := layer.OpenFileLayer(PhysicalLayerName, o.imagePath)
	if err != nil {
		return nil, err
	}
	memory := layer.NewManager()
	memory.Add(image)

	space := symbols.NewSpace(log)
	if err := winmem.RegisterOverrides(space); err != nil {
		_ = image.Close()
		return nil, err
	}
	symbolsPath := o.symbolsPath
	if symbolsPath == "" && cfg.Symbols.Dir != "" {
		symbolsPath = filepath.Join(cfg.Symbols.Dir, o.table+".json")
	}
	if symbolsPath == "" {
		_ = image.Close()
		return nil, fmt.Errorf("--symbols is required (or set symbols.dir in config)")
	}
	if _, err := space.LoadTableFile(o.table, symbolsPath); err != nil {
		_ = image.Close()
		return nil, err
	}

	// Library components tag their own loggers off the bare logger; the
	// CLI's messages carry their own component field.
	return &appState{
		cfg:   cfg,
		log:   logging.NewWithComponent(logCfg, "cli"),
		image: image,
		ctx:   &objects.Context{Memory: memory, Symbols: space, Log: log},
	}, nil
}

func (s *appState) Close() error {
	return s.image.Close()
}

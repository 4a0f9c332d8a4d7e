// canvasfit converts one rendered design canvas into byte-budget
// compliant raster artifacts: an overview image, a grid of overlapping
// tiles for oversized canvases and optional region-of-interest crops,
// plus a manifest.json describing all of them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/images"
	"github.com/designlens/go-raster/pipeline"
)

func main() {
	var (
		inPath     = flag.String("in", "", "source file (.svg, .png, .jpg or .webp)")
		outDir     = flag.String("out", "canvasfit-out", "output directory")
		configPath = flag.String("config", "", "optional yaml config file")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *inPath == "" {
		log.Fatal("missing required -in flag")
	}

	v, err := LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	cfg, err := ParseConfig(v)
	if err != nil {
		log.WithError(err).Fatal("failed to parse config")
	}

	if err := run(context.Background(), log, cfg, *inPath, *outDir); err != nil {
		log.WithError(err).Fatal("canvasfit failed")
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg *Config, inPath, outDir string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	src, err := buildSource(inPath, data)
	if err != nil {
		return err
	}

	result, err := pipeline.New(log).Run(ctx, src, pipeline.Params{
		Fit: fitting.Options{
			MaxBytes:        cfg.MaxBytes,
			MaxLongEdge:     cfg.MaxLongEdge,
			PreferredFormat: images.Format(cfg.Format),
		},
		SVGScale:    cfg.SVGScale,
		TilePx:      cfg.TilePx,
		OverlapPx:   cfg.OverlapPx,
		MinCropSize: cfg.MinCropSize,
	})
	if err != nil {
		return err
	}

	return persist(log, result, outDir)
}

// buildSource decides between the vector and raster pipeline entry based
// on file extension, with a markup sniff as fallback.
func buildSource(path string, data []byte) (pipeline.Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".svg" || strings.Contains(string(data[:min(len(data), 512)]), "<svg") {
		return pipeline.Source{SVG: string(data)}, nil
	}
	img, err := images.Decode(data)
	if err != nil {
		return pipeline.Source{}, err
	}
	return pipeline.Source{Raster: img}, nil
}

// persist writes the artifacts and the manifest record to outDir.
func persist(log *logrus.Logger, result *pipeline.Result, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	ext := "." + string(result.Overview.Format)
	if err := os.WriteFile(filepath.Join(outDir, "overview"+ext), result.Overview.Data, 0o644); err != nil {
		return err
	}
	for i, t := range result.Tiles {
		name := fmt.Sprintf("tile-%03d%s", i, ext)
		if err := os.WriteFile(filepath.Join(outDir, name), t.Artifact.Data, 0o644); err != nil {
			return err
		}
	}
	for _, c := range result.Crops {
		if err := os.WriteFile(filepath.Join(outDir, c.Name+ext), c.Artifact.Data, 0o644); err != nil {
			return err
		}
	}

	manifest, err := json.MarshalIndent(result.Manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "manifest.json"), manifest, 0o644); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"dir":   outDir,
		"tiles": len(result.Tiles),
		"crops": len(result.Crops),
	}).Info("artifacts written")
	return nil
}

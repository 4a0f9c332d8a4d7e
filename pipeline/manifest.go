package pipeline

import (
	"github.com/designlens/go-raster/cropping"
	"github.com/designlens/go-raster/fitting"
	"github.com/designlens/go-raster/tiling"
)

// Manifest is the per-invocation record handed to the persistence
// collaborator. Tile records are in row-major order and collectively
// cover the full source image; x,y,w,h are source-pixel coordinates while
// width,height are the encoded dimensions after fitting.
type Manifest struct {
	Selected SelectedSource `json:"selected"`
	Overview OverviewRecord `json:"overview"`
	Tiles    []TileRecord   `json:"tiles"`
	Crops    []CropRecord   `json:"crops,omitempty"`
}

// SelectedSource records which source representation fed the pipeline.
type SelectedSource struct {
	SourceFormatUsed string `json:"sourceFormatUsed"`
}

// OverviewRecord describes the fitted whole-canvas artifact.
type OverviewRecord struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	Quality     int     `json:"quality"`
	ScaleFactor float64 `json:"scaleFactor"`
	Bytes       int     `json:"bytes"`
}

// TileRecord describes one fitted grid tile.
type TileRecord struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	W      int `json:"w"`
	H      int `json:"h"`
	Bytes  int `json:"bytes"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropRecord describes one fitted region of interest.
type CropRecord struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Bytes  int    `json:"bytes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// buildManifest flattens the stage outputs into the manifest record.
func buildManifest(sourceFormat string, overview *fitting.Artifact, tiles []tiling.Tile, crops []cropping.Crop) Manifest {
	m := Manifest{
		Selected: SelectedSource{SourceFormatUsed: sourceFormat},
		Overview: OverviewRecord{
			Width:       overview.Width,
			Height:      overview.Height,
			Format:      string(overview.Format),
			Quality:     overview.Quality,
			ScaleFactor: overview.ScaleFactor,
			Bytes:       overview.ByteSize,
		},
		Tiles: make([]TileRecord, 0, len(tiles)),
	}
	for _, t := range tiles {
		m.Tiles = append(m.Tiles, TileRecord{
			X:      t.Region.X,
			Y:      t.Region.Y,
			W:      t.Region.W,
			H:      t.Region.H,
			Bytes:  t.Artifact.ByteSize,
			Width:  t.Artifact.Width,
			Height: t.Artifact.Height,
		})
	}
	for _, c := range crops {
		m.Crops = append(m.Crops, CropRecord{
			Name:   c.Name,
			X:      c.X,
			Y:      c.Y,
			W:      c.W,
			H:      c.H,
			Bytes:  c.Artifact.ByteSize,
			Width:  c.Artifact.Width,
			Height: c.Artifact.Height,
		})
	}
	return m
}

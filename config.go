package swrender

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config carries the renderer's recognized options. All fields are
// optional; the zero value is a valid, conservative configuration. Changing
// Config only takes effect on the next frame — nothing in the renderer
// re-reads it mid-frame.
type Config struct {
	ClearBackground bool `toml:"clear_background"`

	UseDirectionalLightmaps bool `toml:"use_directional_lightmaps"`

	ShadowsQuality float32 `toml:"shadows_quality"` // added to log2(shadow map size)

	TexturesMipBias float32 `toml:"textures_mip_bias"`

	DynamicMipBias bool `toml:"dynamic_mip_bias"`

	InvertPolygonsOrder bool `toml:"invert_polygons_order"`

	DebugDrawDepth bool `toml:"debug_draw_depth"`

	NumThreads uint32 `toml:"num_threads"`

	Exposure float32 `toml:"exposure"`

	// CullPortalsCoveredByGeometry gates the "portal fully covered by leaf
	// polygons" filter, disabled upstream. Off by default.
	CullPortalsCoveredByGeometry bool `toml:"cull_portals_covered_by_geometry"`
}

// DefaultConfig returns the configuration the renderer uses when none is
// supplied: background clearing on, simple lightmaps, unit exposure.
func DefaultConfig() Config {
	return Config{
		ClearBackground: true,
		Exposure:        1,
		NumThreads:      0, // 0 means "use hardware parallelism", see workerpool.go
	}
}

// LoadConfigTOML reads a Config from a TOML file on disk. This is the only
// file I/O the core performs — map, material, and texture loading remain
// external collaborators.
func LoadConfigTOML(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("swrender: read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("swrender: parse config %q: %w", path, err)
	}
	return cfg, nil
}

// clampNumThreads resolves NumThreads to an actual worker count, clamped
// to 64.
func (c Config) clampNumThreads(hardwareParallelism int) int {
	n := int(c.NumThreads)
	if n <= 0 {
		n = hardwareParallelism
	}
	if n > 64 {
		n = 64
	}
	if n < 1 {
		n = 1
	}
	return n
}

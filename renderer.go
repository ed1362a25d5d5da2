package swrender

import (
	"context"

	"github.com/kestrelforge/swrender/bsp"
)

// Renderer is the top-level entry point: it owns the root
// PartialRenderer for the main viewport and drives the full per-frame
// sequence — visibility, object placement, shadow maps, material
// regeneration, surface build, model animation, and portal recursion via
// PrepareFrame, then the
// back-to-front draw walk via DrawFrame,
// finishing with the postprocessor.
//
// Portal recursion itself is owned by PartialRenderer.PrepareFrame, which
// constructs and recurses into child PartialRenderer instances up to
// MaxPortalDepth; Renderer only ever touches the root.
type Renderer struct {
	m         *bsp.Compact
	materials MaterialRegistry
	cfg       Config

	root *PartialRenderer

	width, height int
}

// MaxPortalDepth bounds how many nested portal/mirror recursions
// PrepareFrame will perform.
const MaxPortalDepth = 1

// NewRenderer constructs the top-level driver for a width x height output,
// against a loaded compact BSP and material registry. The BSP and
// registry are shared read-only state for the
// lifetime of the Renderer.
func NewRenderer(m *bsp.Compact, materials MaterialRegistry, cfg Config, width, height int) *Renderer {
	return &Renderer{
		m:         m,
		materials: materials,
		cfg:       cfg,
		root:      NewPartialRenderer(m, materials, cfg, width, height, MaxPortalDepth),
		width:     width,
		height:    height,
	}
}

// SetConfig replaces the driver's configuration. The swap is visible
// starting with the next RenderFrame call, never mid-frame.
func (r *Renderer) SetConfig(cfg Config) {
	r.cfg = cfg
	r.root = NewPartialRenderer(r.m, r.materials, cfg, r.width, r.height, MaxPortalDepth)
}

// RenderFrame renders one frame of fi into dst, a caller-owned framebuffer
// matching the driver's configured width/height. This is the entire public
// surface of the rendering core: scene state in, pixels out.
func (r *Renderer) RenderFrame(ctx context.Context, fi *FrameInfo, dst *Framebuffer) error {
	if r.cfg.DebugDrawDepth {
		r.renderDepthView(fi, dst)
		return nil
	}

	prep, err := r.root.PrepareFrame(ctx, fi)
	if err != nil {
		return err
	}

	hdr := r.root.hdr
	for i := range hdr {
		hdr[i] = ColorBlack
	}
	r.root.DrawFrame(ctx, prep, hdr, r.width, r.height)

	exposure := ReinhardExposure(exposureOrDefault(r.cfg.Exposure))
	_ = r.root.pool.Partition(ctx, r.height, func(lo, hi int) error {
		PostprocessRows(dst, hdr, exposure, lo, hi)
		return nil
	})
	return nil
}

// renderDepthView replaces the shaded frame with a grayscale view of the
// main camera's inverse-depth buffer (Config.DebugDrawDepth): nearer
// geometry reads brighter, untouched pixels stay black.
func (r *Renderer) renderDepthView(fi *FrameInfo, dst *Framebuffer) {
	cam := fi.CameraMatrices
	depth := r.root.depth
	depth.Clear()
	r.root.shadowDepth.DrawMap(depth, cam, depthMapProjectFunc(cam, r.width, r.height))

	var maxInvZ float32
	for _, v := range depth.Values {
		if v > maxInvZ {
			maxInvZ = v
		}
	}
	scale := float32(0)
	if maxInvZ > 0 {
		scale = 1 / maxInvZ
	}
	hdr := r.root.hdr
	for i, v := range depth.Values {
		g := v * scale
		hdr[i] = Color{R: g, G: g, B: g, A: 1}
	}
	Postprocess(dst, hdr, ReinhardExposure(exposureOrDefault(r.cfg.Exposure)))
}

// exposureOrDefault treats a zero-value Config.Exposure (the Go zero
// value, indistinguishable from "unset") as the neutral default rather
// than a black frame — Config's doc comment promises "the zero value is a
// valid, conservative configuration."
func exposureOrDefault(exposure float32) float32 {
	if exposure == 0 {
		return float32(DefaultExposure)
	}
	return exposure
}

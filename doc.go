// Package swrender implements the software-rendering core for indoor,
// BSP-partitioned 3D scenes. It consumes a preprocessed, read-only compact
// BSP map (package bsp), a material/texture registry, and a per-frame scene
// description, and produces a rasterized color image entirely on the CPU.
//
// The package is organized leaves-first along the same lines as the data
// flow it implements: clipping polygons and the 3D/2D clipper, BSP+portal
// visibility, the lit-texel surface cache and builder, the material
// processor, the depth rasterizer and shadow maps, the polygon and
// triangle/sprite rasterizers, the dynamic objects index, the partial
// renderer that orchestrates one viewport, the HDR postprocessor, and the
// top-level frame driver that recurses through portals.
package swrender

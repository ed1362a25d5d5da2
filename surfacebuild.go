package swrender

import (
	"cogentcore.org/core/math32"

	"github.com/kestrelforge/swrender/bsp"
)

// maxSurfaceLights bounds how many dynamic lights can contribute to one
// polygon's surface.
const maxSurfaceLights = 6

// targetVisibleSurfaceTexels is the adaptive mip bias's fixed target texel
// budget, independent of viewport size. It couples frame cost to scene
// complexity rather than resolution; see DESIGN.md for why it stays
// fixed.
const targetVisibleSurfaceTexels = 1024 * 256

// ChooseMip evaluates the 2x2 Jacobian of (u,v) w.r.t. screen (x,y) at
// the max-inv-z vertex, and takes mip = ceil(0.5*log2(max(|du|^2,|dv|^2))
// + bias), clamped to [0,MaxMip].
func ChooseMip(du, dv [2]float32, bias float32) int {
	duLen2 := du[0]*du[0] + du[1]*du[1]
	dvLen2 := dv[0]*dv[0] + dv[1]*dv[1]
	m := duLen2
	if dvLen2 > m {
		m = dvLen2
	}
	if m <= 0 {
		return 0
	}
	mip := int(ceilF32(0.5*log2F32(m) + bias))
	if mip < 0 {
		mip = 0
	}
	if mip > MaxMip {
		mip = MaxMip
	}
	return mip
}

// clampMip clamps an arbitrary mip index into the selectable range
// [0,MaxMip], matching ChooseMip's own clamping so callers that derive a
// mip from a bias term alone (no per-pixel screen gradient available) stay
// within the material's actual pyramid depth.
func clampMip(mip int) int {
	if mip < 0 {
		return 0
	}
	if mip > MaxMip {
		return MaxMip
	}
	return mip
}

func ceilF32(x float32) float32 {
	i := int(x)
	if float32(i) < x {
		i++
	}
	return float32(i)
}

// AdaptiveMipBias nudges a running mip bias towards keeping the total
// visible-surface-texel count near targetVisibleSurfaceTexels, amortizing
// surface-build cost across frames rather than recomputing an exact
// solution every frame.
func AdaptiveMipBias(previousBias float32, visibleTexelsLastFrame int) float32 {
	if visibleTexelsLastFrame <= 0 {
		return previousBias
	}
	ratio := float32(visibleTexelsLastFrame) / float32(targetVisibleSurfaceTexels)
	// One step of log2(ratio), damped, so the bias doesn't overshoot on a
	// single noisy frame.
	return previousBias + 0.25*log2F32(ratio)
}

// SurfaceRect is the selected [tcMin, tcMax) texel rectangle a surface
// covers, already clamped to the polygon's precomputed bounds and rounded
// to lightmap-sample multiples.
type SurfaceRect struct {
	Min, Size [2]int32
}

// ChooseSurfaceRect computes the exact on-screen texel rectangle from the
// min/max tex coordinates visited by the polygon's on-screen vertices,
// clamped to the polygon's precomputed tc bounds.
func ChooseSurfaceRect(tcMin, tcMax [2]float32, polyTCMin, polyTCMax [2]float32) SurfaceRect {
	var r SurfaceRect
	for i := 0; i < 2; i++ {
		lo := floorF32(tcMin[i])
		hi := ceilF32(tcMax[i])
		if lo < polyTCMin[i] {
			lo = floorF32(polyTCMin[i])
		}
		if hi > polyTCMax[i] {
			hi = ceilF32(polyTCMax[i])
		}
		r.Min[i] = int32(lo)
		size := int32(hi) - int32(lo)
		if size < 1 {
			size = 1
		}
		r.Size[i] = size
	}
	return r
}

func floorF32(x float32) float32 {
	i := int(x)
	if float32(i) > x {
		i--
	}
	return float32(i)
}

// SurfaceLightSource pairs a dynamic light with its shadow map for a
// single surface-build call.
type SurfaceLightSource struct {
	Light *DynamicLight
}

// constantAmbient is a flat ambient floor added to every surface texel
// even with no lightmap and no dynamic lights, so surfaces are never pure
// black. Kept far below modulateTexel's per-channel clamp so dynamic
// lighting's 1/r^2 falloff stays visible on top of it.
var constantAmbient = Color{R: 0.0625, G: 0.0625, B: 0.0625}

// SurfaceInputs bundles the per-polygon inputs shared by all surface build
// variants: the reserved rect, the texture (of record for this frame, at
// the chosen mip), the polygon's world-space plane and tc equations, and
// the dynamic lights affecting it. TexShift is an animated-scroll offset
// applied to texture sampling only, never to world positions.
type SurfaceInputs struct {
	Size     [2]int
	TCMin    [2]int32
	TexShift [2]int32
	Texture  *TextureMip

	// NormalMap, when non-nil, holds per-texel tangent-space normals (RGB
	// biased to [0,1], roughness in A) applied before the dynamic light
	// dot products.
	NormalMap *TextureMip

	// Emissive is added to the light term unconditionally.
	Emissive Color

	Plane      bsp.Plane
	TCEquation [2]bsp.Plane

	Lights []SurfaceLightSource
}

// LightmapInputs locates a polygon's baked lightmap samples: the sample
// grid dimensions, the surface rect's offset within it (in surface texels),
// and the effective log2 scale (lightmap density shrinks with the surface's
// mip level).
type LightmapInputs struct {
	Samples     []bsp.LightmapSample
	Directional []bsp.DirectionalLightmapSample
	Size        [2]int
	TCShift     [2]int
	ScaleLog2   int
}

// surfaceTexelFrame is the per-texel state the build loops share: basis
// walk vectors plus the optional normal-map perturbation frame.
type surfaceTexelFrame struct {
	start, u, v math32.Vector3
	normal      math32.Vector3
	uDir, vDir  math32.Vector3
}

func newSurfaceTexelFrame(in *SurfaceInputs) surfaceTexelFrame {
	start, u, v := surfaceBasis(in.Plane, in.TCEquation, in.TCMin)
	return surfaceTexelFrame{
		start:  start,
		u:      u,
		v:      v,
		normal: in.Plane.Normal.Normal(),
		uDir:   u.Normal(),
		vDir:   v.Normal(),
	}
}

// texelNormal resolves the shading normal for one surface texel: the plane
// normal, or a normal-map sample rotated into the polygon's tangent frame.
func (f *surfaceTexelFrame) texelNormal(in *SurfaceInputs, du, dv int) math32.Vector3 {
	if in.NormalMap == nil || len(in.NormalMap.Pixels) == 0 {
		return f.normal
	}
	s := in.NormalMap.SampleTiled(int(in.TCMin[0])+du, int(in.TCMin[1])+dv)
	nx, ny, nz := s.R*2-1, s.G*2-1, s.B*2-1
	n := f.uDir.MulScalar(nx).Add(f.vDir.MulScalar(ny)).Add(f.normal.MulScalar(nz))
	return n.Normal()
}

// BuildSurfaceDynamicOnly fills a surface using only the constant ambient
// term, emissive, and dynamic lights (no baked lightmap), used for
// polygons without lightmap data.
func BuildSurfaceDynamicOnly(out []Color, in *SurfaceInputs) {
	frame := newSurfaceTexelFrame(in)
	base := constantAmbient.Add(in.Emissive)

	for dv := 0; dv < in.Size[1]; dv++ {
		dstLine := out[dv*in.Size[0] : (dv+1)*in.Size[0]]
		startPosV := frame.start.Add(frame.v.MulScalar(float32(dv)))

		for du := 0; du < in.Size[0]; du++ {
			total := base
			if len(in.Lights) > 0 {
				pos := startPosV.Add(frame.u.MulScalar(float32(du)))
				n := frame.texelNormal(in, du, dv)
				for _, ls := range in.Lights {
					total = total.Add(pointLightContribution(ls.Light, n, pos))
				}
			}
			dstLine[du] = modulateTexel(in, du, dv, total)
		}
	}
}

// BuildSurfaceWithLightmap fills a surface by modulating the base texture
// with a bilinearly-interpolated baked lightmap (simple or directional
// variant) plus emissive and dynamic light contributions.
func BuildSurfaceWithLightmap(out []Color, in *SurfaceInputs, lm *LightmapInputs) {
	frame := newSurfaceTexelFrame(in)
	scaleLog2 := lm.ScaleLog2
	if scaleLog2 < 0 {
		scaleLog2 = 0
	}
	invScale := float32(1) / float32(int(1)<<uint(scaleLog2))

	lineLightmap := make([]Color, lm.Size[0])

	for dv := 0; dv < in.Size[1]; dv++ {
		lmV := (dv + lm.TCShift[1]) >> uint(scaleLog2)
		lmVPlus := clampLightmapIndex(lmV+1, lm.Size[1])
		lmV = clampLightmapIndex(lmV, lm.Size[1])
		k := (float32(dv+lm.TCShift[1]-(lmV<<uint(scaleLog2))) + 0.5) * invScale
		if k < 0 {
			k = 0
		}
		if k > 1 {
			k = 1
		}
		kInv := 1 - k
		for lmU := 0; lmU < lm.Size[0]; lmU++ {
			l0 := lm.sample(lmU, lmV, frame.normal)
			l1 := lm.sample(lmU, lmVPlus, frame.normal)
			lineLightmap[lmU] = l0.Scale(kInv).Add(l1.Scale(k))
		}

		dstLine := out[dv*in.Size[0] : (dv+1)*in.Size[0]]
		startPosV := frame.start.Add(frame.v.MulScalar(float32(dv)))

		for du := 0; du < in.Size[0]; du++ {
			lmU := (du + lm.TCShift[0]) >> uint(scaleLog2)
			lmUPlus := clampLightmapIndex(lmU+1, lm.Size[0])
			lmU = clampLightmapIndex(lmU, lm.Size[0])
			ku := (float32(du+lm.TCShift[0]-(lmU<<uint(scaleLog2))) + 0.5) * invScale
			if ku < 0 {
				ku = 0
			}
			if ku > 1 {
				ku = 1
			}
			lmValue := lineLightmap[lmU].Scale(1 - ku).Add(lineLightmap[lmUPlus].Scale(ku))
			lmValue = lmValue.Add(in.Emissive)

			if len(in.Lights) > 0 {
				pos := startPosV.Add(frame.u.MulScalar(float32(du)))
				n := frame.texelNormal(in, du, dv)
				for _, ls := range in.Lights {
					lmValue = lmValue.Add(pointLightContribution(ls.Light, n, pos))
				}
			}

			dstLine[du] = modulateTexel(in, du, dv, lmValue)
		}
	}
}

func clampLightmapIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// sample fetches one lightmap texel: the plain RGB triple, or the
// directional light-cube collapsed against the surface normal when the
// directional variant is selected.
func (lm *LightmapInputs) sample(u, v int, normal math32.Vector3) Color {
	idx := u + v*lm.Size[0]
	if len(lm.Directional) > 0 {
		if idx >= len(lm.Directional) {
			return Color{}
		}
		return sampleLightCube(lm.Directional[idx].Cube, normal)
	}
	if idx >= len(lm.Samples) {
		return Color{}
	}
	rgb := lm.Samples[idx].RGB
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}
}

// lightCubeAxes orders a light cube's six samples as +X,-X,+Y,-Y,+Z,-Z,
// matching cubeFaceAxes' face order.
var lightCubeAxes = [6]math32.Vector3{
	math32.Vec3(1, 0, 0), math32.Vec3(-1, 0, 0),
	math32.Vec3(0, 1, 0), math32.Vec3(0, -1, 0),
	math32.Vec3(0, 0, 1), math32.Vec3(0, 0, -1),
}

func sampleLightCube(cube [6][3]float32, normal math32.Vector3) Color {
	var c Color
	for i, axis := range lightCubeAxes {
		w := normal.Dot(axis)
		if w <= 0 {
			continue
		}
		c.R += cube[i][0] * w
		c.G += cube[i][1] * w
		c.B += cube[i][2] * w
	}
	return c
}

// modulateTexel samples the base texture (with the animated scroll shift
// applied) and modulates it by the accumulated light, clamped per channel.
func modulateTexel(in *SurfaceInputs, du, dv int, light Color) Color {
	texel := in.Texture.SampleTiled(int(in.TCMin[0]+in.TexShift[0])+du, int(in.TCMin[1]+in.TexShift[1])+dv)
	return Color{
		R: minF32(texel.R*light.R, 1),
		G: minF32(texel.G*light.G, 1),
		B: minF32(texel.B*light.B, 1),
		A: texel.A,
	}
}

// surfaceBasis recovers the per-surface world-space basis vectors (U, V)
// and start position from a polygon's plane and tc equation by inverting
// the 3x3 system [tc_u; tc_v; plane_normal].
func surfaceBasis(plane bsp.Plane, tcEquation [2]bsp.Plane, tcMin [2]int32) (start, u, v math32.Vector3) {
	basis := Matrix4{
		tcEquation[0].Normal.X, tcEquation[0].Normal.Y, tcEquation[0].Normal.Z, tcEquation[0].Dist,
		tcEquation[1].Normal.X, tcEquation[1].Normal.Y, tcEquation[1].Normal.Z, tcEquation[1].Dist,
		plane.Normal.X, plane.Normal.Y, plane.Normal.Z, -plane.Dist,
		0, 0, 0, 1,
	}
	inv := basis.Transpose().Inverse()
	u = math32.Vec3(inv[0], inv[4], inv[8])
	v = math32.Vec3(inv[1], inv[5], inv[9])
	startPos := math32.Vec3(inv[3], inv[7], inv[11])
	start = startPos.Add(u.MulScalar(float32(tcMin[0]) + 0.5)).Add(v.MulScalar(float32(tcMin[1]) + 0.5))
	return start, u, v
}

// pointLightContribution computes one light's additive contribution to a
// surface texel at pos with the given surface normal, including shadow
// fetch and angle/attenuation falloff.
func pointLightContribution(light *DynamicLight, normal math32.Vector3, pos math32.Vector3) Color {
	vecToLight := light.Position.Sub(pos)
	shadow := light.ShadowFactor(vecToLight, pos)
	if shadow <= 0 {
		return Color{}
	}

	len2 := vecToLight.X*vecToLight.X + vecToLight.Y*vecToLight.Y + vecToLight.Z*vecToLight.Z
	if len2 < minPositiveValue {
		len2 = minPositiveValue
	}
	invLen := InvSqrtFast(len2)
	cosAngle := normal.Dot(vecToLight) * invLen
	if cosAngle <= 0 {
		return Color{}
	}
	scale := shadow * cosAngle / len2
	return Color{
		R: light.Color[0] * scale,
		G: light.Color[1] * scale,
		B: light.Color[2] * scale,
	}
}

const minPositiveValue = 1e-12

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

package swrender

// PolygonVertexProjected is one screen-space vertex ready for the polygon
// rasterizer: fixed-point screen position plus the camera-space inverse
// depth needed to recover perspective-correct tex coords.
type PolygonVertexProjected struct {
	X, Y Fixed16
	InvZ float32
}

// TexCoordEquation gives, for each of u and v, the linear coefficients
// (over screen x, y) and constant term used to recover a tex coordinate
// from inv_z and screen position: coeffX*x + coeffY*y + coeffConst gives
// tc*inv_z, which the full-perspective and line-z fills multiply by z to
// get tc; the affine fill samples that linear value as is.
// This mirrors the camera-space DrawRecord.TCEq/TCW pair once projected to
// screen space.
type TexCoordEquation struct {
	U, V [3]float32 // [coeffX, coeffY, coeffConst]
}

// ClipRect is a pixel-exact [MinX,MaxX) x [MinY,MaxY) rasterizer clip
// rectangle; the per-thread tile renderer supplies its own.
type ClipRect struct {
	MinX, MinY, MaxX, MaxY int
}

// blendFunc resolves a BlendMode to the per-pixel blend operation once per
// fill call, keeping the span loop at one table lookup and one blend per
// pixel with no per-pixel mode branch.
func blendFunc(mode BlendMode) func(dst uint32, src Color) uint32 {
	switch mode {
	case BlendAverage:
		return func(dst uint32, src Color) uint32 {
			d := unpackColor(dst)
			return packColorClamped(d.Add(src).Scale(0.5))
		}
	case BlendAdditive:
		return func(dst uint32, src Color) uint32 {
			d := unpackColor(dst)
			return packColorClamped(d.Add(src))
		}
	case BlendAlphaTest:
		return func(dst uint32, src Color) uint32 {
			if src.A < 0.5 {
				return dst
			}
			return packColorClamped(src)
		}
	case BlendAlphaBlend:
		return func(dst uint32, src Color) uint32 {
			d := unpackColor(dst)
			return packColorClamped(d.Scale(1 - src.A).Add(src.Scale(src.A)))
		}
	default:
		return func(dst uint32, src Color) uint32 {
			return packColorClamped(src)
		}
	}
}

func unpackColor(p uint32) Color {
	return Color{
		R: float32(p&0xFF) / 255,
		G: float32((p>>8)&0xFF) / 255,
		B: float32((p>>16)&0xFF) / 255,
		A: float32((p>>24)&0xFF) / 255,
	}
}

func packColorClamped(c Color) uint32 {
	clamp := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v * 255)
	}
	return PackColor(clamp(c.R), clamp(c.G), clamp(c.B), clamp(c.A))
}

// polyEdgeWalk holds the per-scanline left/right edge state for a convex
// polygon fill, shared by all three interpolation modes.
type polyEdgeWalk struct {
	minY, maxY          int
	leftX, rightX       []Fixed16
	leftInvZ, rightInvZ []float32
}

func buildPolyEdgeWalk(vertices []PolygonVertexProjected) polyEdgeWalk {
	n := len(vertices)
	minIdx := 0
	for i := 1; i < n; i++ {
		if vertices[i].Y < vertices[minIdx].Y {
			minIdx = i
		}
	}
	minY, maxY := vertices[minIdx].Y, vertices[minIdx].Y
	for _, v := range vertices {
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	yStart, yEnd := minY.Floor(), maxY.Ceil()
	rows := yEnd - yStart + 1
	if rows < 1 {
		rows = 1
	}
	w := polyEdgeWalk{
		minY: yStart, maxY: yEnd,
		leftX: make([]Fixed16, rows), rightX: make([]Fixed16, rows),
		leftInvZ: make([]float32, rows), rightInvZ: make([]float32, rows),
	}
	for i := range w.leftX {
		w.leftX[i] = 1 << 30
		w.rightX[i] = -(1 << 30)
	}

	walk := func(a, b PolygonVertexProjected) {
		if a.Y == b.Y {
			return
		}
		lo, hi := a, b
		if lo.Y > hi.Y {
			lo, hi = hi, lo
		}
		dy := float32(hi.Y-lo.Y) / fixedOne
		y0, y1 := lo.Y.Floor(), hi.Y.Ceil()
		if y0 < yStart {
			y0 = yStart
		}
		if y1 > yEnd {
			y1 = yEnd
		}
		for y := y0; y <= y1; y++ {
			fy := (float32(y) + 0.5) - lo.Y.Float()
			t := fy / dy
			if t < 0 {
				t = 0
			}
			if t > 1 {
				t = 1
			}
			x := FixedFromFloat(lo.X.Float() + (hi.X.Float()-lo.X.Float())*t)
			invZ := lo.InvZ + (hi.InvZ-lo.InvZ)*t
			row := y - yStart
			if x < w.leftX[row] {
				w.leftX[row] = x
				w.leftInvZ[row] = invZ
			}
			if x > w.rightX[row] {
				w.rightX[row] = x
				w.rightInvZ[row] = invZ
			}
		}
	}

	for i := 0; i < n; i++ {
		walk(vertices[i], vertices[(i+1)%n])
	}
	return w
}

// FillPolygon rasterizes a convex, clockwise screen-space polygon using
// the given interpolation mode and blend mode. texture is sampled
// with tiled (wraparound) addressing.
func FillPolygon(
	dst *Framebuffer,
	clip ClipRect,
	vertices []PolygonVertexProjected,
	tcEq TexCoordEquation,
	texture *TextureMip,
	mode TexInterpMode,
	blend BlendMode,
) {
	if len(vertices) < 3 {
		return
	}
	blendFn := blendFunc(blend)
	plot := func(idx int, texel Color) {
		dst.Pixels[idx] = blendFn(dst.Pixels[idx], texel)
	}
	dispatchFill(mode, clip, dst.Pitch, vertices, tcEq, texture, plot)
}

func clampSpan(xStart, xEnd, minX, maxX int) (int, int) {
	if xStart < minX {
		xStart = minX
	}
	if xEnd > maxX {
		xEnd = maxX
	}
	return xStart, xEnd
}

// pixelPlot receives one rasterized pixel: the flat framebuffer index and
// the sampled (and already-blended-policy-chosen) texel color. FillPolygon
// and FillPolygonHDR share the same three scanline walks below and differ
// only in how they turn a texel into a final stored pixel.
type pixelPlot func(idx int, texel Color)

func fillFullPerspective(clip ClipRect, pitch int, vertices []PolygonVertexProjected, tcEq TexCoordEquation, texture *TextureMip, plot pixelPlot) {
	w := buildPolyEdgeWalk(vertices)
	yStart, yEnd := w.minY, w.maxY
	if yStart < clip.MinY {
		yStart = clip.MinY
	}
	if yEnd >= clip.MaxY {
		yEnd = clip.MaxY - 1
	}
	for y := yStart; y <= yEnd; y++ {
		row := y - w.minY
		if row < 0 || row >= len(w.leftX) || w.leftX[row] > w.rightX[row] {
			continue
		}
		xStartInt, xEndInt := w.leftX[row].Floor(), w.rightX[row].Floor()
		xStartInt, xEndInt = clampSpan(xStartInt, xEndInt, clip.MinX, clip.MaxX)
		if xStartInt >= xEndInt {
			continue
		}
		fy := float32(y) + 0.5
		rowOff := y * pitch
		for x := xStartInt; x < xEndInt; x++ {
			fx := float32(x) + 0.5
			invZ := w.leftInvZ[row] + (w.rightInvZ[row]-w.leftInvZ[row])*safeDiv(fx-w.leftX[row].Float(), w.rightX[row].Float()-w.leftX[row].Float())
			if invZ <= 0 {
				continue
			}
			z := 1 / invZ
			u := (tcEq.U[0]*fx + tcEq.U[1]*fy + tcEq.U[2]) * z
			v := (tcEq.V[0]*fx + tcEq.V[1]*fy + tcEq.V[2]) * z
			texel := texture.SampleTiled(int(u), int(v))
			plot(rowOff+x, texel)
		}
	}
}

func fillLineZCorrected(clip ClipRect, pitch int, vertices []PolygonVertexProjected, tcEq TexCoordEquation, texture *TextureMip, plot pixelPlot) {
	w := buildPolyEdgeWalk(vertices)
	yStart, yEnd := w.minY, w.maxY
	if yStart < clip.MinY {
		yStart = clip.MinY
	}
	if yEnd >= clip.MaxY {
		yEnd = clip.MaxY - 1
	}
	for y := yStart; y <= yEnd; y++ {
		row := y - w.minY
		if row < 0 || row >= len(w.leftX) || w.leftX[row] > w.rightX[row] {
			continue
		}
		xStartInt, xEndInt := w.leftX[row].Floor(), w.rightX[row].Floor()
		xStartInt, xEndInt = clampSpan(xStartInt, xEndInt, clip.MinX, clip.MaxX)
		if xStartInt >= xEndInt {
			continue
		}
		fy := float32(y) + 0.5

		zLeft := safeDiv(1, w.leftInvZ[row])
		zRight := safeDiv(1, w.rightInvZ[row])
		uLeft := (tcEq.U[0]*w.leftX[row].Float() + tcEq.U[1]*fy + tcEq.U[2]) * zLeft
		vLeft := (tcEq.V[0]*w.leftX[row].Float() + tcEq.V[1]*fy + tcEq.V[2]) * zLeft
		uRight := (tcEq.U[0]*w.rightX[row].Float() + tcEq.U[1]*fy + tcEq.U[2]) * zRight
		vRight := (tcEq.V[0]*w.rightX[row].Float() + tcEq.V[1]*fy + tcEq.V[2]) * zRight

		span := w.rightX[row].Float() - w.leftX[row].Float()
		rowOff := y * pitch
		for x := xStartInt; x < xEndInt; x++ {
			t := safeDiv(float32(x)+0.5-w.leftX[row].Float(), span)
			u := uLeft + (uRight-uLeft)*t
			v := vLeft + (vRight-vLeft)*t
			texel := texture.SampleTiled(int(u), int(v))
			plot(rowOff+x, texel)
		}
	}
}

func fillAffine(clip ClipRect, pitch int, vertices []PolygonVertexProjected, tcEq TexCoordEquation, texture *TextureMip, plot pixelPlot) {
	// Fully affine: tc is linear in screen (x, y) directly, no per-pixel
	// or per-scanline z correction.
	w := buildPolyEdgeWalk(vertices)
	yStart, yEnd := w.minY, w.maxY
	if yStart < clip.MinY {
		yStart = clip.MinY
	}
	if yEnd >= clip.MaxY {
		yEnd = clip.MaxY - 1
	}
	for y := yStart; y <= yEnd; y++ {
		row := y - w.minY
		if row < 0 || row >= len(w.leftX) || w.leftX[row] > w.rightX[row] {
			continue
		}
		xStartInt, xEndInt := w.leftX[row].Floor(), w.rightX[row].Floor()
		xStartInt, xEndInt = clampSpan(xStartInt, xEndInt, clip.MinX, clip.MaxX)
		if xStartInt >= xEndInt {
			continue
		}
		fy := float32(y) + 0.5
		rowOff := y * pitch
		for x := xStartInt; x < xEndInt; x++ {
			fx := float32(x) + 0.5
			u := tcEq.U[0]*fx + tcEq.U[1]*fy + tcEq.U[2]
			v := tcEq.V[0]*fx + tcEq.V[1]*fy + tcEq.V[2]
			texel := texture.SampleTiled(int(u), int(v))
			plot(rowOff+x, texel)
		}
	}
}

func dispatchFill(mode TexInterpMode, clip ClipRect, pitch int, vertices []PolygonVertexProjected, tcEq TexCoordEquation, texture *TextureMip, plot pixelPlot) {
	switch mode {
	case InterpFull:
		fillFullPerspective(clip, pitch, vertices, tcEq, texture, plot)
	case InterpLineZ:
		fillLineZCorrected(clip, pitch, vertices, tcEq, texture, plot)
	default:
		fillAffine(clip, pitch, vertices, tcEq, texture, plot)
	}
}

// blendFuncColor mirrors blendFunc's cases directly in linear Color space,
// used by FillPolygonHDR so the HDR accumulation buffer never round-trips
// through 8-bit packing mid-frame.
func blendFuncColor(mode BlendMode) func(dst, src Color) Color {
	switch mode {
	case BlendAverage:
		return func(dst, src Color) Color { return dst.Add(src).Scale(0.5) }
	case BlendAdditive:
		return func(dst, src Color) Color { return dst.Add(src) }
	case BlendAlphaTest:
		return func(dst, src Color) Color {
			if src.A < 0.5 {
				return dst
			}
			return src
		}
	case BlendAlphaBlend:
		return func(dst, src Color) Color { return dst.Scale(1 - src.A).Add(src.Scale(src.A)) }
	default:
		return func(dst, src Color) Color { return src }
	}
}

// FillPolygonHDR rasterizes into a linear HDR accumulation buffer ([]Color,
// not a packed Framebuffer), used by the partial renderer's main draw walk
// so surface-cache texels (already lit, possibly >1) reach the
// accumulation buffer without the framebuffer path's 8-bit clamp.
func FillPolygonHDR(
	dst []Color,
	pitch int,
	clip ClipRect,
	vertices []PolygonVertexProjected,
	tcEq TexCoordEquation,
	texture *TextureMip,
	mode TexInterpMode,
	blend BlendMode,
) {
	if len(vertices) < 3 {
		return
	}
	blendFn := blendFuncColor(blend)
	plot := func(idx int, texel Color) {
		if idx < 0 || idx >= len(dst) {
			return
		}
		dst[idx] = blendFn(dst[idx], texel)
	}
	dispatchFill(mode, clip, pitch, vertices, tcEq, texture, plot)
}

// ChooseInterpMode picks the cheapest texture-interpolation mode whose
// estimated error stays within a 0.75 texel tolerance, testing along the
// min-inv-z -> max-inv-z edge. The affine error is worstCaseAffineError's
// bound, |delta tc|*(zRatio-1)/4, not the deviation at the exact worst
// parameter t*; the line-z error is taken as half of that bound.
func ChooseInterpMode(tcNearU, tcFarU, tcNearV, tcFarV float32, invZNear, invZFar float32) TexInterpMode {
	errU := worstCaseAffineError(tcNearU, tcFarU, invZNear, invZFar)
	errV := worstCaseAffineError(tcNearV, tcFarV, invZNear, invZFar)
	if errU <= 0.75 && errV <= 0.75 {
		return InterpAffine
	}
	// Line-z-corrected halves the error versus pure affine by correcting
	// z per scanline rather than once per polygon; approximate its error
	// as half the affine error for the mode-selection heuristic.
	if errU*0.5 <= 0.75 && errV*0.5 <= 0.75 {
		return InterpLineZ
	}
	return InterpFull
}

func worstCaseAffineError(tcNear, tcFar float32, invZNear, invZFar float32) float32 {
	if invZNear <= 0 || invZFar <= 0 {
		return 1e9
	}
	zNear, zFar := 1/invZNear, 1/invZFar
	// tc(t) true value interpolates tc/z linearly then divides by the
	// linearly interpolated 1/z; affine interpolates tc directly. The
	// maximum deviation between the two over t in [0,1] is bounded by
	// the endpoint tc delta scaled by the z ratio's deviation from 1.
	ratio := zFar / zNear
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return abs32(tcFar-tcNear) * (ratio - 1) * 0.25
}

package bsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"cogentcore.org/core/math32"
)

// Magic is the 4-byte file magic identifying a compact BSP map file.
var Magic = [4]byte{'S', 'q', 'w', 'M'}

// Version is the file format version this package reads and writes.
const Version uint32 = 11

// MaxLumps bounds the lump header table.
const MaxLumps = 32

// Fixed lump indices, in file order.
const (
	lumpNodes = iota
	lumpLeaves
	lumpPolygons
	lumpPortals
	lumpLeafsPortals
	lumpVertices
	lumpTextures
	lumpSubmodels
	lumpSubmodelsBSPNodes
	lumpEntities
	lumpKeyValuePairs
	lumpStringsData
	lumpLightmapsData
	lumpDirectionalLightmapsData
	lumpLightGridHeader
	lumpLightGridColumns
	lumpLightGridSamples
	numLumps
)

// lumpHeader mirrors the on-disk {offset, element_size, element_count}
// triple.
type lumpHeader struct {
	Offset       uint32
	ElementSize  uint32
	ElementCount uint32
}

const lumpHeaderSize = 12 // 3 * uint32
const fileHeaderFixedSize = 4 + 4 + MaxLumps*lumpHeaderSize

// Save writes m to w in the compact binary format.
func Save(w io.Writer, m *Compact) error {
	var lumps [MaxLumps]lumpHeader
	var body bytes.Buffer

	writeLump := func(idx int, elemSize int, n int, enc func(*bytes.Buffer) error) error {
		lumps[idx] = lumpHeader{
			Offset:       uint32(fileHeaderFixedSize + body.Len()),
			ElementSize:  uint32(elemSize),
			ElementCount: uint32(n),
		}
		return enc(&body)
	}

	if err := writeLump(lumpNodes, nodeSize, len(m.Nodes), func(b *bytes.Buffer) error { return writeNodes(b, m.Nodes) }); err != nil {
		return err
	}
	if err := writeLump(lumpLeaves, leafSize, len(m.Leaves), func(b *bytes.Buffer) error { return writeLeaves(b, m.Leaves) }); err != nil {
		return err
	}
	if err := writeLump(lumpPolygons, polygonSize, len(m.Polygons), func(b *bytes.Buffer) error { return writePolygons(b, m.Polygons) }); err != nil {
		return err
	}
	if err := writeLump(lumpPortals, portalSize, len(m.Portals), func(b *bytes.Buffer) error { return writePortals(b, m.Portals) }); err != nil {
		return err
	}
	if err := writeLump(lumpLeafsPortals, 4, len(m.LeafPortals), func(b *bytes.Buffer) error { return writeUint32s(b, m.LeafPortals) }); err != nil {
		return err
	}
	if err := writeLump(lumpVertices, 12, len(m.Vertices), func(b *bytes.Buffer) error { return writeVec3s(b, m.Vertices) }); err != nil {
		return err
	}
	if err := writeLump(lumpTextures, MaxTextureNameLen, len(m.Textures), func(b *bytes.Buffer) error { return writeTextures(b, m.Textures) }); err != nil {
		return err
	}
	if err := writeLump(lumpSubmodels, submodelSize, len(m.Submodels), func(b *bytes.Buffer) error { return writeSubmodels(b, m.Submodels) }); err != nil {
		return err
	}
	if err := writeLump(lumpSubmodelsBSPNodes, nodeSize, len(m.SubmodelNodes), func(b *bytes.Buffer) error { return writeNodes(b, m.SubmodelNodes) }); err != nil {
		return err
	}
	if err := writeLump(lumpEntities, 1, len(m.Entities), func(b *bytes.Buffer) error { _, err := b.Write(m.Entities); return err }); err != nil {
		return err
	}
	if err := writeLump(lumpKeyValuePairs, 1, len(m.KeyValuePairs), func(b *bytes.Buffer) error { _, err := b.Write(m.KeyValuePairs); return err }); err != nil {
		return err
	}
	if err := writeLump(lumpStringsData, 1, len(m.StringsData), func(b *bytes.Buffer) error { _, err := b.Write(m.StringsData); return err }); err != nil {
		return err
	}
	if err := writeLump(lumpLightmapsData, 12, len(m.Lightmaps), func(b *bytes.Buffer) error { return writeLightmaps(b, m.Lightmaps) }); err != nil {
		return err
	}
	if err := writeLump(lumpDirectionalLightmapsData, 72, len(m.DirectionalLightmaps), func(b *bytes.Buffer) error {
		return writeDirectionalLightmaps(b, m.DirectionalLightmaps)
	}); err != nil {
		return err
	}
	if err := writeLump(lumpLightGridHeader, lightGridHeaderSize, 1, func(b *bytes.Buffer) error { return writeLightGridHeader(b, m.LightGrid) }); err != nil {
		return err
	}
	if err := writeLump(lumpLightGridColumns, 4, len(m.LightGridColumns), func(b *bytes.Buffer) error { return writeUint32s(b, m.LightGridColumns) }); err != nil {
		return err
	}
	if err := writeLump(lumpLightGridSamples, lightGridSampleSize, len(m.LightGridSamples), func(b *bytes.Buffer) error {
		return writeLightGridSamples(b, m.LightGridSamples)
	}); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, lumps); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Load reads a *Compact from r, validating magic, version, and every
// lump's declared element size.
func Load(r io.Reader) (*Compact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if len(data) < fileHeaderFixedSize {
		return nil, fmt.Errorf("%w: file too short", ErrRead)
	}
	var magic [4]byte
	copy(magic[:], data[0:4])
	if magic != Magic {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != Version {
		return nil, ErrIncompatibleVersion
	}

	var lumps [MaxLumps]lumpHeader
	off := 8
	for i := range lumps {
		lumps[i] = lumpHeader{
			Offset:       binary.LittleEndian.Uint32(data[off:]),
			ElementSize:  binary.LittleEndian.Uint32(data[off+4:]),
			ElementCount: binary.LittleEndian.Uint32(data[off+8:]),
		}
		off += lumpHeaderSize
	}

	lumpBytes := func(idx int, expectSize int) ([]byte, error) {
		lh := lumps[idx]
		if lh.ElementCount > 0 && expectSize > 0 && int(lh.ElementSize) != expectSize {
			return nil, fmt.Errorf("%w: lump %d has element size %d, want %d", ErrLumpSize, idx, lh.ElementSize, expectSize)
		}
		n := int(lh.ElementSize) * int(lh.ElementCount)
		start := int(lh.Offset)
		if start+n > len(data) || start < 0 || n < 0 {
			return nil, fmt.Errorf("%w: lump %d out of bounds", ErrRead, idx)
		}
		return data[start : start+n], nil
	}

	m := &Compact{}

	b, err := lumpBytes(lumpNodes, nodeSize)
	if err != nil {
		return nil, err
	}
	m.Nodes = readNodes(b, int(lumps[lumpNodes].ElementCount))

	if b, err = lumpBytes(lumpLeaves, leafSize); err != nil {
		return nil, err
	}
	m.Leaves = readLeaves(b, int(lumps[lumpLeaves].ElementCount))

	if b, err = lumpBytes(lumpPolygons, polygonSize); err != nil {
		return nil, err
	}
	m.Polygons = readPolygons(b, int(lumps[lumpPolygons].ElementCount))

	if b, err = lumpBytes(lumpPortals, portalSize); err != nil {
		return nil, err
	}
	m.Portals = readPortals(b, int(lumps[lumpPortals].ElementCount))

	if b, err = lumpBytes(lumpLeafsPortals, 4); err != nil {
		return nil, err
	}
	m.LeafPortals = readUint32s(b, int(lumps[lumpLeafsPortals].ElementCount))

	if b, err = lumpBytes(lumpVertices, 12); err != nil {
		return nil, err
	}
	m.Vertices = readVec3s(b, int(lumps[lumpVertices].ElementCount))

	if b, err = lumpBytes(lumpTextures, MaxTextureNameLen); err != nil {
		return nil, err
	}
	m.Textures = readTextures(b, int(lumps[lumpTextures].ElementCount))

	if b, err = lumpBytes(lumpSubmodels, submodelSize); err != nil {
		return nil, err
	}
	m.Submodels = readSubmodels(b, int(lumps[lumpSubmodels].ElementCount))

	if b, err = lumpBytes(lumpSubmodelsBSPNodes, nodeSize); err != nil {
		return nil, err
	}
	m.SubmodelNodes = readNodes(b, int(lumps[lumpSubmodelsBSPNodes].ElementCount))

	if b, err = lumpBytes(lumpEntities, 0); err != nil {
		return nil, err
	}
	m.Entities = append([]byte(nil), b...)

	if b, err = lumpBytes(lumpKeyValuePairs, 0); err != nil {
		return nil, err
	}
	m.KeyValuePairs = append([]byte(nil), b...)

	if b, err = lumpBytes(lumpStringsData, 0); err != nil {
		return nil, err
	}
	m.StringsData = append([]byte(nil), b...)

	if b, err = lumpBytes(lumpLightmapsData, 12); err != nil {
		return nil, err
	}
	m.Lightmaps = readLightmaps(b, int(lumps[lumpLightmapsData].ElementCount))

	if b, err = lumpBytes(lumpDirectionalLightmapsData, 72); err != nil {
		return nil, err
	}
	m.DirectionalLightmaps = readDirectionalLightmaps(b, int(lumps[lumpDirectionalLightmapsData].ElementCount))

	if b, err = lumpBytes(lumpLightGridHeader, lightGridHeaderSize); err != nil {
		return nil, err
	}
	if len(b) >= lightGridHeaderSize {
		m.LightGrid = readLightGridHeader(b)
	}

	if b, err = lumpBytes(lumpLightGridColumns, 4); err != nil {
		return nil, err
	}
	m.LightGridColumns = readUint32s(b, int(lumps[lumpLightGridColumns].ElementCount))

	if b, err = lumpBytes(lumpLightGridSamples, lightGridSampleSize); err != nil {
		return nil, err
	}
	m.LightGridSamples = readLightGridSamples(b, int(lumps[lumpLightGridSamples].ElementCount))

	return m, nil
}

// --- Fixed element sizes (bytes) ---

const (
	planeSize           = 16 // Vector3 (12) + Dist (4)
	nodeSize            = 4 + 4 + planeSize
	leafSize            = 16
	polygonSize         = 4 + 4 + planeSize + 2*planeSize + 4*4 + 4 + 4
	portalSize          = 4 + 4 + planeSize + 4 + 4
	submodelSize        = 12
	lightGridHeaderSize = 12 + 12 + 12
	lightGridSampleSize = 6*12 + 12
)

// --- Binary encode/decode helpers ---
// All multi-byte fields are little-endian, matching a plain value-type
// layout written with the host's native (little-endian) byte order.

func writePlane(b *bytes.Buffer, p Plane) error {
	var tmp [planeSize]byte
	binary.LittleEndian.PutUint32(tmp[0:], math32.Float32bits(p.Normal.X))
	binary.LittleEndian.PutUint32(tmp[4:], math32.Float32bits(p.Normal.Y))
	binary.LittleEndian.PutUint32(tmp[8:], math32.Float32bits(p.Normal.Z))
	binary.LittleEndian.PutUint32(tmp[12:], math32.Float32bits(p.Dist))
	_, err := b.Write(tmp[:])
	return err
}

func readPlane(b []byte) Plane {
	return Plane{
		Normal: math32.Vec3(
			math32.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		),
		Dist: math32.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
	}
}

func writeU32(b *bytes.Buffer, v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	_, err := b.Write(tmp[:])
	return err
}

func writeF32(b *bytes.Buffer, v float32) error {
	return writeU32(b, math32.Float32bits(v))
}

func writeUint32s(b *bytes.Buffer, vs []uint32) error {
	for _, v := range vs {
		if err := writeU32(b, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint32s(b []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func writeVec3s(b *bytes.Buffer, vs []math32.Vector3) error {
	for _, v := range vs {
		if err := writeF32(b, v.X); err != nil {
			return err
		}
		if err := writeF32(b, v.Y); err != nil {
			return err
		}
		if err := writeF32(b, v.Z); err != nil {
			return err
		}
	}
	return nil
}

func readVec3s(b []byte, n int) []math32.Vector3 {
	out := make([]math32.Vector3, n)
	for i := 0; i < n; i++ {
		o := i * 12
		out[i] = math32.Vec3(
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o+4:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o+8:])),
		)
	}
	return out
}

func writeNodes(b *bytes.Buffer, nodes []Node) error {
	for _, n := range nodes {
		if err := writeU32(b, n.Children[0]); err != nil {
			return err
		}
		if err := writeU32(b, n.Children[1]); err != nil {
			return err
		}
		if err := writePlane(b, n.Plane); err != nil {
			return err
		}
	}
	return nil
}

func readNodes(b []byte, n int) []Node {
	out := make([]Node, n)
	for i := 0; i < n; i++ {
		o := i * nodeSize
		out[i] = Node{
			Children: [2]uint32{
				binary.LittleEndian.Uint32(b[o:]),
				binary.LittleEndian.Uint32(b[o+4:]),
			},
			Plane: readPlane(b[o+8:]),
		}
	}
	return out
}

func writeLeaves(b *bytes.Buffer, leaves []Leaf) error {
	for _, l := range leaves {
		for _, v := range []uint32{l.FirstPolygon, l.NumPolygons, l.FirstLeafPortal, l.NumLeafPortals} {
			if err := writeU32(b, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func readLeaves(b []byte, n int) []Leaf {
	out := make([]Leaf, n)
	for i := 0; i < n; i++ {
		o := i * leafSize
		out[i] = Leaf{
			FirstPolygon:    binary.LittleEndian.Uint32(b[o:]),
			NumPolygons:     binary.LittleEndian.Uint32(b[o+4:]),
			FirstLeafPortal: binary.LittleEndian.Uint32(b[o+8:]),
			NumLeafPortals:  binary.LittleEndian.Uint32(b[o+12:]),
		}
	}
	return out
}

func writePolygons(b *bytes.Buffer, polys []Polygon) error {
	for _, p := range polys {
		if err := writeU32(b, p.FirstVertex); err != nil {
			return err
		}
		if err := writeU32(b, p.NumVertices); err != nil {
			return err
		}
		if err := writePlane(b, p.Plane); err != nil {
			return err
		}
		if err := writePlane(b, p.TCEquation[0]); err != nil {
			return err
		}
		if err := writePlane(b, p.TCEquation[1]); err != nil {
			return err
		}
		for _, v := range []float32{p.TCMin[0], p.TCMin[1], p.TCMax[0], p.TCMax[1]} {
			if err := writeF32(b, v); err != nil {
				return err
			}
		}
		if err := writeU32(b, p.Texture); err != nil {
			return err
		}
		if err := writeU32(b, p.LightmapData); err != nil {
			return err
		}
	}
	return nil
}

func readPolygons(b []byte, n int) []Polygon {
	out := make([]Polygon, n)
	for i := 0; i < n; i++ {
		o := i * polygonSize
		p := Polygon{
			FirstVertex: binary.LittleEndian.Uint32(b[o:]),
			NumVertices: binary.LittleEndian.Uint32(b[o+4:]),
			Plane:       readPlane(b[o+8:]),
		}
		o2 := o + 8 + planeSize
		p.TCEquation[0] = readPlane(b[o2:])
		p.TCEquation[1] = readPlane(b[o2+planeSize:])
		o3 := o2 + 2*planeSize
		p.TCMin = [2]float32{
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o3:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o3+4:])),
		}
		p.TCMax = [2]float32{
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o3+8:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o3+12:])),
		}
		p.Texture = binary.LittleEndian.Uint32(b[o3+16:])
		p.LightmapData = binary.LittleEndian.Uint32(b[o3+20:])
		out[i] = p
	}
	return out
}

func writePortals(b *bytes.Buffer, portals []Portal) error {
	for _, p := range portals {
		if err := writeU32(b, p.Leafs[0]); err != nil {
			return err
		}
		if err := writeU32(b, p.Leafs[1]); err != nil {
			return err
		}
		if err := writePlane(b, p.Plane); err != nil {
			return err
		}
		if err := writeU32(b, p.FirstVertex); err != nil {
			return err
		}
		if err := writeU32(b, p.NumVertices); err != nil {
			return err
		}
	}
	return nil
}

func readPortals(b []byte, n int) []Portal {
	out := make([]Portal, n)
	for i := 0; i < n; i++ {
		o := i * portalSize
		out[i] = Portal{
			Leafs:       [2]uint32{binary.LittleEndian.Uint32(b[o:]), binary.LittleEndian.Uint32(b[o+4:])},
			Plane:       readPlane(b[o+8:]),
			FirstVertex: binary.LittleEndian.Uint32(b[o+8+planeSize:]),
			NumVertices: binary.LittleEndian.Uint32(b[o+12+planeSize:]),
		}
	}
	return out
}

func writeSubmodels(b *bytes.Buffer, subs []Submodel) error {
	for _, s := range subs {
		for _, v := range []uint32{s.FirstPolygon, s.NumPolygons, s.RootNode} {
			if err := writeU32(b, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSubmodels(b []byte, n int) []Submodel {
	out := make([]Submodel, n)
	for i := 0; i < n; i++ {
		o := i * submodelSize
		out[i] = Submodel{
			FirstPolygon: binary.LittleEndian.Uint32(b[o:]),
			NumPolygons:  binary.LittleEndian.Uint32(b[o+4:]),
			RootNode:     binary.LittleEndian.Uint32(b[o+8:]),
		}
	}
	return out
}

func writeTextures(b *bytes.Buffer, texs [][MaxTextureNameLen]byte) error {
	for _, t := range texs {
		if _, err := b.Write(t[:]); err != nil {
			return err
		}
	}
	return nil
}

func readTextures(b []byte, n int) [][MaxTextureNameLen]byte {
	out := make([][MaxTextureNameLen]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], b[i*MaxTextureNameLen:(i+1)*MaxTextureNameLen])
	}
	return out
}

func writeLightmaps(b *bytes.Buffer, lms []LightmapSample) error {
	for _, l := range lms {
		for _, v := range l.RGB {
			if err := writeF32(b, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func readLightmaps(b []byte, n int) []LightmapSample {
	out := make([]LightmapSample, n)
	for i := 0; i < n; i++ {
		o := i * 12
		out[i] = LightmapSample{RGB: [3]float32{
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o+4:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[o+8:])),
		}}
	}
	return out
}

func writeDirectionalLightmaps(b *bytes.Buffer, lms []DirectionalLightmapSample) error {
	for _, l := range lms {
		for _, face := range l.Cube {
			for _, v := range face {
				if err := writeF32(b, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readDirectionalLightmaps(b []byte, n int) []DirectionalLightmapSample {
	out := make([]DirectionalLightmapSample, n)
	for i := 0; i < n; i++ {
		base := i * 72
		var s DirectionalLightmapSample
		for f := 0; f < 6; f++ {
			o := base + f*12
			s.Cube[f] = [3]float32{
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o:])),
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o+4:])),
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o+8:])),
			}
		}
		out[i] = s
	}
	return out
}

func writeLightGridHeader(b *bytes.Buffer, h LightGridHeader) error {
	for _, v := range []float32{h.Origin.X, h.Origin.Y, h.Origin.Z, h.CellSize.X, h.CellSize.Y, h.CellSize.Z} {
		if err := writeF32(b, v); err != nil {
			return err
		}
	}
	for _, v := range h.Dims {
		if err := writeU32(b, v); err != nil {
			return err
		}
	}
	return nil
}

func readLightGridHeader(b []byte) LightGridHeader {
	return LightGridHeader{
		Origin: math32.Vec3(
			math32.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		),
		CellSize: math32.Vec3(
			math32.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[16:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[20:])),
		),
		Dims: [3]uint32{
			binary.LittleEndian.Uint32(b[24:]),
			binary.LittleEndian.Uint32(b[28:]),
			binary.LittleEndian.Uint32(b[32:]),
		},
	}
}

func writeLightGridSamples(b *bytes.Buffer, samples []LightGridSample) error {
	for _, s := range samples {
		for _, face := range s.Cube {
			for _, v := range face {
				if err := writeF32(b, v); err != nil {
					return err
				}
			}
		}
		for _, v := range s.Ambient {
			if err := writeF32(b, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func readLightGridSamples(b []byte, n int) []LightGridSample {
	out := make([]LightGridSample, n)
	for i := 0; i < n; i++ {
		base := i * lightGridSampleSize
		var s LightGridSample
		for f := 0; f < 6; f++ {
			o := base + f*12
			s.Cube[f] = [3]float32{
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o:])),
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o+4:])),
				math32.Float32frombits(binary.LittleEndian.Uint32(b[o+8:])),
			}
		}
		ao := base + 6*12
		s.Ambient = [3]float32{
			math32.Float32frombits(binary.LittleEndian.Uint32(b[ao:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[ao+4:])),
			math32.Float32frombits(binary.LittleEndian.Uint32(b[ao+8:])),
		}
		out[i] = s
	}
	return out
}

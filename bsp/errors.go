package bsp

import "errors"

// Loading the compact BSP format can fail in exactly these ways
// as distinct error kinds; the core is never entered with a partially
// loaded map, so Load either returns a fully usable *Compact or one of
// these sentinel-wrapped errors (all errors.Is-compatible).
var (
	// ErrRead wraps any I/O failure while reading the map file.
	ErrRead = errors.New("bsp: read failure")
	// ErrBadMagic is returned when the file doesn't start with "SqwM".
	ErrBadMagic = errors.New("bsp: bad magic")
	// ErrIncompatibleVersion is returned when the file's version doesn't
	// match the version this package reads.
	ErrIncompatibleVersion = errors.New("bsp: incompatible version")
	// ErrLumpSize is returned when a lump's declared element size doesn't
	// match the size this package expects for that lump.
	ErrLumpSize = errors.New("bsp: lump element-size mismatch")
)

package rmscene

import "math"

// PointFromV1 decodes a version-1 point (six raw float32 fields) into
// the canonical v2 shape, applying the scaling in spec.md §4.6.
func PointFromV1(x, y, speed, direction, width, pressure float32) Point {
	return Point{
		X:         x,
		Y:         y,
		Speed:     uint16(math.Round(float64(speed) * 4)),
		Direction: uint8(math.Round(float64(direction) * 255 / (2 * math.Pi))),
		Width:     uint16(math.Round(float64(width) * 4)),
		Pressure:  uint8(math.Round(float64(pressure) * 255)),
	}
}

// ToV1 returns the six raw float32 fields a version-1 block would
// store for p, inverting PointFromV1's scaling.
func (p Point) ToV1() (x, y, speed, direction, width, pressure float32) {
	x = p.X
	y = p.Y
	speed = float32(p.Speed) / 4
	direction = float32(p.Direction) * (2 * math.Pi) / 255
	width = float32(p.Width) / 4
	pressure = float32(p.Pressure) / 255
	return
}

func readPointV2(bs *ByteStream) (Point, error) {
	x, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	y, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	speed, err := bs.ReadU16()
	if err != nil {
		return Point{}, err
	}
	width, err := bs.ReadU16()
	if err != nil {
		return Point{}, err
	}
	direction, err := bs.ReadU8()
	if err != nil {
		return Point{}, err
	}
	pressure, err := bs.ReadU8()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y, Speed: speed, Width: width, Direction: direction, Pressure: pressure}, nil
}

func writePointV2(bs *ByteStream, p Point) {
	bs.WriteF32(p.X)
	bs.WriteF32(p.Y)
	bs.WriteU16(p.Speed)
	bs.WriteU16(p.Width)
	bs.WriteU8(p.Direction)
	bs.WriteU8(p.Pressure)
}

func readPointV1(bs *ByteStream) (Point, error) {
	x, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	y, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	speed, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	direction, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	width, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	pressure, err := bs.ReadF32()
	if err != nil {
		return Point{}, err
	}
	return PointFromV1(x, y, speed, direction, width, pressure), nil
}

func writePointV1(bs *ByteStream, p Point) {
	x, y, speed, direction, width, pressure := p.ToV1()
	bs.WriteF32(x)
	bs.WriteF32(y)
	bs.WriteF32(speed)
	bs.WriteF32(direction)
	bs.WriteF32(width)
	bs.WriteF32(pressure)
}

func pointSizeFor(version uint8) int {
	if version == 1 {
		return PointSizeV1
	}
	return PointSizeV2
}

func readPoint(bs *ByteStream, version uint8) (Point, error) {
	if version == 1 {
		return readPointV1(bs)
	}
	return readPointV2(bs)
}

func writePoint(bs *ByteStream, version uint8, p Point) {
	if version == 1 {
		writePointV1(bs, p)
		return
	}
	writePointV2(bs, p)
}

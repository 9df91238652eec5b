package rmscene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointV2RoundTrip(t *testing.T) {
	p := Point{X: 12.5, Y: -4.25, Speed: 400, Direction: 128, Width: 40, Pressure: 255}
	w := NewByteStreamWriter()
	writePointV2(w, p)
	require.Equal(t, PointSizeV2, w.Len())

	r := NewByteStreamReader(w.Bytes())
	got, err := readPointV2(r)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestPointFromV1Scenario(t *testing.T) {
	// S6: speed=25.0, direction=pi, width=10.0, pressure=0.5 maps to the
	// documented v2 integers within rounding tolerance.
	p := PointFromV1(0, 0, 25.0, math.Pi, 10.0, 0.5)
	require.Equal(t, uint16(100), p.Speed)
	require.InDelta(t, 128, int(p.Direction), 1)
	require.Equal(t, uint16(40), p.Width)
	require.InDelta(t, 128, int(p.Pressure), 1)
}

func TestPointV1RoundTripThroughReadWrite(t *testing.T) {
	p := PointFromV1(1, 2, 25.0, math.Pi, 10.0, 0.5)
	w := NewByteStreamWriter()
	writePointV1(w, p)
	require.Equal(t, PointSizeV1, w.Len())

	r := NewByteStreamReader(w.Bytes())
	got, err := readPointV1(r)
	require.NoError(t, err)
	require.Equal(t, p.X, got.X)
	require.Equal(t, p.Y, got.Y)
	require.InDelta(t, p.Speed, got.Speed, 1)
	require.InDelta(t, int(p.Direction), int(got.Direction), 1)
	require.InDelta(t, p.Width, got.Width, 1)
	require.InDelta(t, int(p.Pressure), int(got.Pressure), 1)
}

func TestPointSizeFor(t *testing.T) {
	require.Equal(t, PointSizeV1, pointSizeFor(1))
	require.Equal(t, PointSizeV2, pointSizeFor(2))
	require.Equal(t, PointSizeV2, pointSizeFor(0))
}

func TestReadWritePointDispatch(t *testing.T) {
	for _, version := range []uint8{1, 2} {
		p := Point{X: 1, Y: 2, Speed: 10, Direction: 20, Width: 30, Pressure: 40}
		w := NewByteStreamWriter()
		writePoint(w, version, p)
		require.Equal(t, pointSizeFor(version), w.Len())

		r := NewByteStreamReader(w.Bytes())
		got, err := readPoint(r, version)
		require.NoError(t, err)
		if version == 2 {
			require.Equal(t, p, got)
		} else {
			require.Equal(t, p.X, got.X)
			require.Equal(t, p.Y, got.Y)
		}
	}
}

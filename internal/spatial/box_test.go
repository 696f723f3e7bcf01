package spatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestBoundingBox_EquatorHalfSize(t *testing.T) {
	// One degree of latitude is 111120 m in the box approximation, so a
	// 111120 m radius with no buffer spans exactly one degree each way.
	box := boundingBox(0, -60, metersPerDegree, 1.0)

	if got := box.Max.Lat(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected north edge 1.0, got %f", got)
	}
	if got := box.Min.Lat(); math.Abs(got-(-1.0)) > 1e-9 {
		t.Errorf("expected south edge -1.0, got %f", got)
	}
	if got := box.Max.Lon(); math.Abs(got-(-59.0)) > 1e-9 {
		t.Errorf("expected east edge -59.0, got %f", got)
	}
}

func TestBoundingBox_WidensWithLatitude(t *testing.T) {
	equator := boundingBox(0, -60, 100e3, 1.1)
	high := boundingBox(60, -60, 100e3, 1.1)

	eqHalf := equator.Max.Lat() - 0
	highHalf := high.Max.Lat() - 60
	if math.Abs(highHalf-2*eqHalf) > 1e-9 {
		t.Errorf("expected half-size to double at 60N: equator %f, 60N %f", eqHalf, highHalf)
	}
}

func TestBoundingBox_BufferAppliedToBothAxes(t *testing.T) {
	box := boundingBox(30, 140, 50e3, 1.1)

	latHalf := box.Max.Lat() - 30
	lonHalf := box.Max.Lon() - 140
	if math.Abs(latHalf-lonHalf) > 1e-9 {
		t.Errorf("expected equal half-sizes, lat %f lon %f", latHalf, lonHalf)
	}
	want := 50e3 / math.Cos(30*math.Pi/180) / metersPerDegree * 1.1
	if math.Abs(latHalf-want) > 1e-9 {
		t.Errorf("expected half-size %f, got %f", want, latHalf)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	box := boundingBox(25.5, -80.2, 10e3, 1.1)
	if !box.Contains(orb.Point{-80.2, 25.5}) {
		t.Error("box should contain its own center")
	}
}

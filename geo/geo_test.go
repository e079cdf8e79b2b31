package geo

import "testing"

func TestBoundingBoxForRadiusIsCenteredAndCorrected(t *testing.T) {
	lat, lng := 37.4979, 127.0276 // Gangnam station
	box := BoundingBoxForRadius(lat, lng, 3.0)

	if box.NELat <= lat || box.SWLat >= lat {
		t.Fatalf("latitude bounds not centered on %f: NE=%f SW=%f", lat, box.NELat, box.SWLat)
	}
	if box.NELng <= lng || box.SWLng >= lng {
		t.Fatalf("longitude bounds not centered on %f: NE=%f SW=%f", lng, box.NELng, box.SWLng)
	}

	latSpan := box.NELat - lat
	lngSpan := box.NELng - lng
	if lngSpan <= latSpan {
		t.Fatalf("expected the 0.85 longitude correction to widen the lng span beyond the lat span: lat=%f lng=%f", latSpan, lngSpan)
	}
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	d := Haversine(37.5, 127.0, 37.5, 127.0)
	if d != 0 {
		t.Fatalf("expected 0 distance for identical points, got %f", d)
	}
}

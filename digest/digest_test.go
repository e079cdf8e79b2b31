package digest

import "testing"

func TestOfIsStableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"total": 3, "avg": 119824.0, "station": "Gangnam"}
	b := map[string]interface{}{"station": "Gangnam", "avg": 119824.0, "total": 3}

	da, err := Of(a)
	if err != nil {
		t.Fatalf("Of(a): %v", err)
	}
	db, err := Of(b)
	if err != nil {
		t.Fatalf("Of(b): %v", err)
	}
	if da != db {
		t.Fatalf("digests differ for equal inputs up to key order: %s != %s", da, db)
	}
	if len(da) != 16 {
		t.Fatalf("expected a 16-hex digest, got %d chars: %s", len(da), da)
	}
}

func TestOfDiffersForDifferentInputs(t *testing.T) {
	da, _ := Of(map[string]interface{}{"total": 3})
	db, _ := Of(map[string]interface{}{"total": 4})
	if da == db {
		t.Fatal("expected different digests for different inputs")
	}
}

func TestOfBytesMatchesOf(t *testing.T) {
	raw := []byte(`{"b":2,"a":1}`)
	reordered := []byte(`{"a":1,"b":2}`)

	d1, err := OfBytes(raw)
	if err != nil {
		t.Fatalf("OfBytes(raw): %v", err)
	}
	d2, err := OfBytes(reordered)
	if err != nil {
		t.Fatalf("OfBytes(reordered): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected equal digests for reordered JSON keys: %s != %s", d1, d2)
	}
}

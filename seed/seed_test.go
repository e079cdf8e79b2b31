package seed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDeduplicatesByNameAndLine(t *testing.T) {
	path := writeSeedFile(t, `{"stations":[
		{"name":"Gangnam","line":"2","district":"Gangnam-gu","lat":37.4979,"lng":127.0276,"priority":1},
		{"name":"Gangnam","line":"2","district":"Gangnam-gu","lat":37.4979,"lng":127.0276,"priority":1},
		{"name":"Gangnam","line":"9","district":"Gangnam-gu","lat":37.4979,"lng":127.0276,"priority":2}
	]}`)

	stations, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations after de-duplication, got %d", len(stations))
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected a ConfigError for a missing seed file")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

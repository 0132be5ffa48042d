package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub", "registry.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	return s, path
}

func TestDevicesRoundTrip(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	dev := Device{
		ID:          "abc",
		Identifiers: [][2]string{{"daikin", "AABBCC"}},
		Name:        "House",
		Integration: "daikin",
	}
	if err := s.SaveDevice(dev); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	got, err := s.GetDevice("abc")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Name != "House" || got.Identifiers[0][1] != "AABBCC" {
		t.Fatalf("unexpected device: %+v", got)
	}

	if _, err := s.GetDevice("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntitiesPersistAcrossReopen(t *testing.T) {
	s, path := openStore(t)

	entity := Entity{EntityID: "climate.living_climate", UniqueID: "AABB-zone-climate0", Platform: "climate", Integration: "daikin"}
	if err := s.SaveEntity(entity); err != nil {
		t.Fatalf("SaveEntity: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entities, err := reopened.ListEntities()
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 1 || entities[0].EntityID != "climate.living_climate" {
		t.Fatalf("unexpected entities: %+v", entities)
	}

	if err := reopened.DeleteEntity(entity); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	entities, _ = reopened.ListEntities()
	if len(entities) != 0 {
		t.Fatalf("expected no entities after delete, got %d", len(entities))
	}
}

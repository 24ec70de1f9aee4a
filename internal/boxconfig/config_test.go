package boxconfig

import "testing"

func TestDefaultHasOneBox(t *testing.T) {
	cfg := Default()
	if len(cfg.Boxes) != 1 {
		t.Fatalf("expected 1 default box, got %d", len(cfg.Boxes))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/path/box.hcl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Event.Name != "Untitled Event" {
		t.Fatalf("expected default event name, got %q", cfg.Event.Name)
	}
}

func TestValidateRejectsDuplicateBoxIDs(t *testing.T) {
	cfg := &Config{
		Event:   EventSettings{Name: "Regional Open"},
		Ranking: RankingSettings{PodiumPlaces: 3},
		Boxes: []BoxSettings{
			{ID: 1},
			{ID: 1},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate box ids")
	}
}

func TestValidateRejectsOutOfRangeBoxID(t *testing.T) {
	cfg := &Config{
		Event:   EventSettings{Name: "Regional Open"},
		Ranking: RankingSettings{PodiumPlaces: 3},
		Boxes:   []BoxSettings{{ID: 10000}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range box id")
	}
}

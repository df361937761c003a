package storage_test

import (
	"testing"

	"osnma/storage"
)

func TestProfiles(t *testing.T) {
	if err := storage.Full.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := storage.Small.Validate(); err != nil {
		t.Fatal(err)
	}
	if !storage.Full.SlowMac() {
		t.Fatal("the full profile should support Slow MAC")
	}
	if storage.Small.SlowMac() {
		t.Fatal("the small profile should not support Slow MAC")
	}
}

func TestValidate(t *testing.T) {
	bad := []storage.Profile{
		{NumSats: 0, NavMessageDepth: 13, MackDepth: 12},
		{NumSats: 37, NavMessageDepth: 13, MackDepth: 12},
		{NumSats: 12, NavMessageDepth: 1, MackDepth: 12},
		{NumSats: 12, NavMessageDepth: 3, MackDepth: 0},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("profile %+v should be invalid", p)
		}
	}
}

package db

import (
	"strings"
	"testing"
)

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"types", "pokemon", "evolutions", "natures", "items", "rewards", "trainers", "found", "seen", "statistics", "plonks"} {
		if !strings.Contains(Schema(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing table %q", table)
		}
	}
	if !strings.Contains(Schema(), "DEFERRABLE INITIALLY DEFERRED") {
		t.Fatalf("party slots must be checked at commit so swaps work")
	}
}

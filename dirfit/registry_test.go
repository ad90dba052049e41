package dirfit

import (
	"testing"

	"github.com/orizon-lang/suballoc/config"
)

func TestNewWithRegisteredStrategyUsesDefault(t *testing.T) {
	compat, err := config.NewCompatibility(config.New().MinStrategyVersion)
	if err != nil {
		t.Fatalf("NewCompatibility: %v", err)
	}

	a, err := NewWithRegisteredStrategy(64, "default", compat)
	if err != nil {
		t.Fatalf("NewWithRegisteredStrategy: %v", err)
	}
	defer a.Dispose()

	if _, _, ok := a.TryRent(8); !ok {
		t.Fatalf("rent failed")
	}
}

func TestNewWithRegisteredStrategyUnknownName(t *testing.T) {
	if _, err := NewWithRegisteredStrategy(64, "does-not-exist", nil); err == nil {
		t.Fatalf("expected error for unregistered strategy name")
	}
}

func TestNewWithRegisteredStrategyRejectsOldVersion(t *testing.T) {
	RegisterStrategy("legacy", "0.9.0", DefaultStrategy)

	compat, err := config.NewCompatibility("1.0.0")
	if err != nil {
		t.Fatalf("NewCompatibility: %v", err)
	}

	if _, err := NewWithRegisteredStrategy(64, "legacy", compat); err == nil {
		t.Fatalf("expected version gate to reject strategy declared as 0.9.0")
	}
}

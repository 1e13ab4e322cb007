package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultIDsAreNumericallyOrdered(t *testing.T) {
	got := Default().IDs()
	want := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
}

func TestLookupTarotDefaults(t *testing.T) {
	svc, ok := Default().Lookup("1")
	if !ok {
		t.Fatal("expected service 1 to exist")
	}
	if svc.Price != 15000 {
		t.Errorf("expected price 15000, got %v", svc.Price)
	}
	if svc.Path != "descripcion-cartas" {
		t.Errorf("unexpected path %q", svc.Path)
	}
	if _, ok := Default().Lookup("99"); ok {
		t.Error("expected service 99 to be unknown")
	}
}

func TestDefaultWidgetsValidate(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if len(c.Widgets()) != 8 {
		t.Fatalf("expected 8 widgets, got %d", len(c.Widgets()))
	}
	w, ok := c.Widget("birthchart")
	if !ok || w.Threshold != 2 {
		t.Fatalf("expected birthchart threshold 2, got %+v", w)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`
services:
  - id: "2"
    price: 20000
  - id: "10"
    path: runas
    name: Runas
    price: 5000
widgets:
  - name: dreams
    threshold: 5
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	svc, _ := c.Lookup("2")
	if svc.Price != 20000 || svc.Name != "Significado de Sueños" {
		t.Errorf("override not merged: %+v", svc)
	}
	if _, ok := c.Lookup("10"); !ok {
		t.Error("expected new service 10")
	}
	if ids := c.IDs(); ids[len(ids)-1] != "10" {
		t.Errorf("expected 10 last, got %v", ids)
	}
	w, _ := c.Widget("dreams")
	if w.Threshold != 5 || w.KeyPrefix != "dream" {
		t.Errorf("widget override not merged: %+v", w)
	}
}

func TestLoadRejectsWidgetWithUnknownService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte("widgets:\n  - name: runes\n    service_id: \"42\"\n    threshold: 2\n    key_prefix: runes\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

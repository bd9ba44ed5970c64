package driver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const simulatorsXML = `<driversList>
  <devGroup group="Telescopes">
    <device label="Telescope Simulator">
      <driver name="Telescope Simulator">indi_simulator_telescope</driver>
      <version>1.0</version>
    </device>
  </devGroup>
  <devGroup group="CCDs">
    <device label="CCD Simulator">
      <driver name="CCD Simulator">indi_simulator_ccd</driver>
      <version>1.0</version>
    </device>
    <device label="Guide Simulator">
      <driver name="CCD Simulator">indi_simulator_guide</driver>
      <version>1.0</version>
    </device>
  </devGroup>
</driversList>
`

const focusersXML = `<driversList>
  <devGroup group="Focusers">
    <device label="Focuser Simulator">
      <driver name="Focuser Simulator">indi_simulator_focus</driver>
      <version>1.0</version>
    </device>
  </devGroup>
</driversList>
`

// writeDefinitions populates a temp data dir with definition files.
func writeDefinitions(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func loadTestRegistry(t *testing.T, files map[string]string) *Registry {
	t.Helper()

	r := NewRegistry(writeDefinitions(t, files))
	if err := r.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return r
}

func TestLoad(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{
		"drivers.xml":  simulatorsXML,
		"focusers.xml": focusersXML,
	})

	if r.Count() != 4 {
		t.Errorf("Count() = %d, want 4", r.Count())
	}

	d, err := r.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatalf("ByLabel() error = %v", err)
	}
	if d.Binary != "indi_simulator_ccd" {
		t.Errorf("Binary = %q, want indi_simulator_ccd", d.Binary)
	}
	if d.Family != "CCDs" {
		t.Errorf("Family = %q, want CCDs", d.Family)
	}
	if d.Custom {
		t.Error("built-in driver should not be marked custom")
	}
}

func TestLoad_SkipsMalformedFile(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{
		"good.xml": focusersXML,
		"bad.xml":  "<driversList><devGroup", // truncated
	})

	// The bad file is skipped; the good file still loads.
	if _, err := r.ByLabel("Focuser Simulator"); err != nil {
		t.Errorf("ByLabel() after partial load error = %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestLoad_SkipsSkeletonFiles(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{
		"drivers.xml":      focusersXML,
		"ccd_simul_sk.xml": "<INDIDriver>not a definition</INDIDriver>",
	})

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (skeleton file must be ignored)", r.Count())
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	r := NewRegistry("/nonexistent/indi/data")
	if err := r.Load(); err == nil {
		t.Error("Load() expected error for missing directory, got nil")
	}
}

func TestByLabel_NotFound(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	_, err := r.ByLabel("No Such Driver")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ByLabel() error = %v, want ErrNotFound", err)
	}
}

func TestLoadCustom_OverridesBuiltin(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	r.LoadCustom([]Driver{
		{
			Name:    "CCD Simulator",
			Label:   "CCD Simulator",
			Version: "2.0",
			Binary:  "/opt/custom/indi_ccd",
			Family:  "CCDs",
		},
	})

	d, err := r.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatalf("ByLabel() error = %v", err)
	}
	if d.Binary != "/opt/custom/indi_ccd" {
		t.Errorf("Binary = %q, want custom override", d.Binary)
	}
	if !d.Custom {
		t.Error("overlay driver should be marked custom")
	}

	// Clearing the overlay restores the built-in definition.
	r.ClearCustom()

	d, err = r.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatalf("ByLabel() after ClearCustom error = %v", err)
	}
	if d.Binary != "indi_simulator_ccd" {
		t.Errorf("Binary = %q, want built-in restored", d.Binary)
	}
}

func TestLoadCustom_NewLabel(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	r.LoadCustom([]Driver{
		{Name: "My Dome", Label: "My Dome", Version: "1.0", Binary: "indi_mydome", Family: "Domes"},
	})

	if _, err := r.ByLabel("My Dome"); err != nil {
		t.Errorf("ByLabel() custom error = %v", err)
	}

	r.ClearCustom()

	if _, err := r.ByLabel("My Dome"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByLabel() after ClearCustom error = %v, want ErrNotFound", err)
	}
}

func TestLoadCustom_LastWriteWins(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	r.LoadCustom([]Driver{
		{Label: "Dup", Name: "Dup", Binary: "first", Family: "CCDs"},
		{Label: "Dup", Name: "Dup", Binary: "second", Family: "CCDs"},
	})

	d, err := r.ByLabel("Dup")
	if err != nil {
		t.Fatalf("ByLabel() error = %v", err)
	}
	if d.Binary != "second" {
		t.Errorf("Binary = %q, want second (last write wins)", d.Binary)
	}
}

func TestGroupsByFamily(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{
		"drivers.xml":  simulatorsXML,
		"focusers.xml": focusersXML,
	})

	groups := r.GroupsByFamily()

	if len(groups["CCDs"]) != 2 {
		t.Errorf("CCDs group has %d labels, want 2", len(groups["CCDs"]))
	}
	if len(groups["Telescopes"]) != 1 {
		t.Errorf("Telescopes group has %d labels, want 1", len(groups["Telescopes"]))
	}
	if len(groups["Focusers"]) != 1 {
		t.Errorf("Focusers group has %d labels, want 1", len(groups["Focusers"]))
	}
}

func TestFamilies_Sorted(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{
		"drivers.xml":  simulatorsXML,
		"focusers.xml": focusersXML,
	})

	families := r.Families()
	want := []string{"CCDs", "Focusers", "Telescopes"}
	if len(families) != len(want) {
		t.Fatalf("Families() = %v, want %v", families, want)
	}
	for i := range want {
		if families[i] != want[i] {
			t.Errorf("Families()[%d] = %q, want %q", i, families[i], want[i])
		}
	}
}

func TestAll_SortedByLabel(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	all := r.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Label > all[i].Label {
			t.Errorf("All() not sorted: %q before %q", all[i-1].Label, all[i].Label)
		}
	}
}

func TestByName(t *testing.T) {
	r := loadTestRegistry(t, map[string]string{"drivers.xml": simulatorsXML})

	d, err := r.ByName("Telescope Simulator")
	if err != nil {
		t.Fatalf("ByName() error = %v", err)
	}
	if d.Label != "Telescope Simulator" {
		t.Errorf("Label = %q", d.Label)
	}

	if _, err := r.ByName("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByName() error = %v, want ErrNotFound", err)
	}
}

func TestNewRemote(t *testing.T) {
	d := NewRemote("astro.local@7624")

	if d.Label != "astro.local@7624" || d.Binary != "astro.local@7624" {
		t.Errorf("remote label/binary = %q/%q, want endpoint spec for both", d.Label, d.Binary)
	}
	if d.Family != RemoteFamily {
		t.Errorf("Family = %q, want %q", d.Family, RemoteFamily)
	}
	if !d.IsRemote() {
		t.Error("IsRemote() = false, want true")
	}
}

func TestReload_PreservesCustomOverlay(t *testing.T) {
	dir := writeDefinitions(t, map[string]string{"drivers.xml": simulatorsXML})

	r := NewRegistry(dir)
	if err := r.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	r.LoadCustom([]Driver{
		{Name: "My Dome", Label: "My Dome", Binary: "indi_mydome", Family: "Domes"},
	})

	if err := r.Load(); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if _, err := r.ByLabel("My Dome"); err != nil {
		t.Errorf("custom driver lost across reload: %v", err)
	}
}

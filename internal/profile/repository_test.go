package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/astrohub/indiweb-core/internal/infrastructure/database"
	_ "github.com/astrohub/indiweb-core/migrations" // Register embedded migrations
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "profiles.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestCreateGetProfile(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := &Profile{Name: "Deep Sky", Port: 7625, AutoStart: true, AutoConnect: true}
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if p.ID == 0 {
		t.Error("CreateProfile() did not set ID")
	}

	got, err := repo.GetProfile(ctx, "Deep Sky")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Port != 7625 || !got.AutoStart || !got.AutoConnect {
		t.Errorf("GetProfile() = %+v", got)
	}
}

func TestCreateProfile_DefaultPort(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := &Profile{Name: "Defaults"}
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if p.Port != 7624 {
		t.Errorf("Port = %d, want 7624", p.Port)
	}
}

func TestCreateProfile_Duplicate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateProfile(ctx, &Profile{Name: "Dup"}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	err := repo.CreateProfile(ctx, &Profile{Name: "Dup"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateProfile() error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetProfile(context.Background(), "No Such Profile")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want ErrNotFound", err)
	}
}

func TestListProfiles_IncludesSeededDefault(t *testing.T) {
	repo := openTestRepo(t)

	profiles, err := repo.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}

	// The initial migration seeds a Simulators profile.
	found := false
	for _, p := range profiles {
		if p.Name == "Simulators" {
			found = true
		}
	}
	if !found {
		t.Error("seeded Simulators profile missing")
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateProfile(ctx, &Profile{Name: "Obs"}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	upd := &Profile{Name: "Obs", Port: 8000, AutoStart: true, AutoConnect: false}
	if err := repo.UpdateProfile(ctx, upd); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := repo.GetProfile(ctx, "Obs")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Port != 8000 || !got.AutoStart {
		t.Errorf("GetProfile() after update = %+v", got)
	}

	err = repo.UpdateProfile(ctx, &Profile{Name: "Ghost", Port: 7624})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProfile() for absent profile error = %v, want ErrNotFound", err)
	}
}

func TestDeleteProfile_CascadesDrivers(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateProfile(ctx, &Profile{Name: "Doomed"}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if err := repo.SetProfileDrivers(ctx, "Doomed", []string{"CCD Simulator"}, nil); err != nil {
		t.Fatalf("SetProfileDrivers() error = %v", err)
	}

	if err := repo.DeleteProfile(ctx, "Doomed"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}

	if _, err := repo.GetProfile(ctx, "Doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := repo.DeleteProfile(ctx, "Doomed"); err != nil {
		t.Errorf("second DeleteProfile() error = %v", err)
	}
}

func TestSetProfileDrivers_ReplacesWholesale(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateProfile(ctx, &Profile{Name: "Imaging"}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	first := []string{"CCD Simulator", "Telescope Simulator"}
	if err := repo.SetProfileDrivers(ctx, "Imaging", first, []string{"remote.host@7624"}); err != nil {
		t.Fatalf("SetProfileDrivers() error = %v", err)
	}

	labels, err := repo.GetProfileDriverLabels(ctx, "Imaging")
	if err != nil {
		t.Fatalf("GetProfileDriverLabels() error = %v", err)
	}
	if len(labels) != 2 || labels[0] != "CCD Simulator" {
		t.Errorf("labels = %v", labels)
	}

	remote, err := repo.GetProfileRemoteDrivers(ctx, "Imaging")
	if err != nil {
		t.Fatalf("GetProfileRemoteDrivers() error = %v", err)
	}
	if len(remote) != 1 || remote[0] != "remote.host@7624" {
		t.Errorf("remote = %v", remote)
	}

	// Second call replaces, never merges.
	if err := repo.SetProfileDrivers(ctx, "Imaging", []string{"Focuser Simulator"}, nil); err != nil {
		t.Fatalf("second SetProfileDrivers() error = %v", err)
	}

	labels, err = repo.GetProfileDriverLabels(ctx, "Imaging")
	if err != nil {
		t.Fatalf("GetProfileDriverLabels() error = %v", err)
	}
	if len(labels) != 1 || labels[0] != "Focuser Simulator" {
		t.Errorf("labels after replace = %v", labels)
	}

	remote, err = repo.GetProfileRemoteDrivers(ctx, "Imaging")
	if err != nil {
		t.Fatalf("GetProfileRemoteDrivers() error = %v", err)
	}
	if len(remote) != 0 {
		t.Errorf("remote after replace = %v", remote)
	}
}

func TestSetProfileDrivers_ProfileNotFound(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.SetProfileDrivers(context.Background(), "Ghost", []string{"X"}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetProfileDrivers() error = %v, want ErrNotFound", err)
	}
}

func TestCustomDrivers_SaveAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	d := &CustomDriver{Label: "My Dome", Name: "My Dome", Family: "Domes", Binary: "indi_mydome"}
	if err := repo.SaveCustomDriver(ctx, d); err != nil {
		t.Fatalf("SaveCustomDriver() error = %v", err)
	}

	drivers, err := repo.ListCustomDrivers(ctx)
	if err != nil {
		t.Fatalf("ListCustomDrivers() error = %v", err)
	}
	if len(drivers) != 1 {
		t.Fatalf("ListCustomDrivers() returned %d, want 1", len(drivers))
	}
	if drivers[0].Version != "1.0" {
		t.Errorf("Version = %q, want default 1.0", drivers[0].Version)
	}

	// Saving the same label upserts.
	d.Binary = "/opt/indi_mydome"
	if err := repo.SaveCustomDriver(ctx, d); err != nil {
		t.Fatalf("upsert SaveCustomDriver() error = %v", err)
	}

	drivers, err = repo.ListCustomDrivers(ctx)
	if err != nil {
		t.Fatalf("ListCustomDrivers() error = %v", err)
	}
	if len(drivers) != 1 {
		t.Fatalf("ListCustomDrivers() after upsert returned %d, want 1", len(drivers))
	}
	if drivers[0].Binary != "/opt/indi_mydome" {
		t.Errorf("Binary = %q, want upserted value", drivers[0].Binary)
	}
}

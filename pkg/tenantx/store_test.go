package tenantx

import (
	"context"
	"testing"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/fsx/fsxlocal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("create filesystem: %v", err)
	}
	return NewStore(fs, "tenants")
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cfg := Config{
		ID:        "t-1",
		Name:      "Rødovre Tennisklub",
		Subdomain: "roedovre-tennisklub",
		MaxCourts: 4,
		PlanID:    "basic",
		Features:  []string{"booking"},
	}
	if err := store.Put(ctx, cfg); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "roedovre-tennisklub")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != cfg.ID || got.Name != cfg.Name || got.MaxCourts != 4 {
		t.Errorf("Get returned %+v, want %+v", got, cfg)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if err == nil {
		t.Fatal("Get on missing tenant returned nil error")
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeNotFound {
		t.Errorf("Get error type = %v, want NOT_FOUND", err)
	}
}

func TestStorePutRequiresSubdomain(t *testing.T) {
	store := newTestStore(t)
	if err := store.Put(context.Background(), Config{Name: "No Subdomain"}); err == nil {
		t.Fatal("Put without subdomain returned nil error")
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, sub := range []string{"alpha", "beta"} {
		if err := store.Put(ctx, Config{ID: sub, Name: sub, Subdomain: sub}); err != nil {
			t.Fatalf("Put %s: %v", sub, err)
		}
	}

	configs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("List returned %d configs, want 2", len(configs))
	}
}

func TestStoreListEmpty(t *testing.T) {
	store := newTestStore(t)
	configs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("List on empty store returned %d configs", len(configs))
	}
}

func TestStoreAvailable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ok, err := store.Available(ctx, "fresh")
	if err != nil || !ok {
		t.Fatalf("Available(fresh) = %v, %v; want true, nil", ok, err)
	}

	if err := store.Put(ctx, Config{ID: "t", Name: "Taken", Subdomain: "taken"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err = store.Available(ctx, "taken")
	if err != nil || ok {
		t.Fatalf("Available(taken) = %v, %v; want false, nil", ok, err)
	}
}

// A config file may claim a subdomain that differs from its file name, for
// instance after a manual rename. Availability must honour the field too.
func TestStoreAvailableChecksConfigField(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, Config{ID: "t", Name: "Odd", Subdomain: "other-name"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// File is other-name.json; rewrite its subdomain field via a second Put
	// under a different file name.
	data, err := store.fs.ReadFile(ctx, store.path("other-name"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := store.fs.WriteFile(ctx, store.path("file-name"), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	ok, err := store.Available(ctx, "other-name")
	if err != nil || ok {
		t.Fatalf("Available(other-name) = %v, %v; want false, nil", ok, err)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Put(ctx, Config{ID: "t", Name: "Gone", Subdomain: "gone"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); err == nil {
		t.Fatal("Get after Delete returned nil error")
	}
	// Deleting again is fine.
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

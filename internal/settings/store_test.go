package settings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"jellywatch/internal/services"
	"jellywatch/internal/settings"
	"jellywatch/internal/testsupport"
)

func TestServiceUnconfigured(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := store.Service(context.Background())
	if !errors.Is(err, settings.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if services.HTTPStatus(err) != 409 {
		t.Fatalf("unexpected status %d", services.HTTPStatus(err))
	}
}

func TestSaveServiceUpsertsSingleRow(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := settings.Service{
		JellyfinURL:         " http://jellyfin.local:8096/ ",
		JellyfinAPIKey:      "key-1",
		MonitorMediaAdded:   true,
		MediaAddedTimeframe: settings.Timeframe1Hour,
	}
	saved, err := store.SaveService(ctx, first)
	if err != nil {
		t.Fatalf("SaveService: %v", err)
	}
	if saved.JellyfinURL != "http://jellyfin.local:8096" {
		t.Fatalf("expected normalized url, got %q", saved.JellyfinURL)
	}
	if saved.TranscodingTimeframe != settings.DefaultTimeframe {
		t.Fatalf("expected default timeframe for empty value, got %q", saved.TranscodingTimeframe)
	}

	second := saved
	second.JellyfinAPIKey = "key-2"
	second.MonitorMediaAdded = false
	second.MonitorTranscoding = true
	second.TranscodingTimeframe = "fortnightly"
	if _, err := store.SaveService(ctx, second); err != nil {
		t.Fatalf("SaveService (update): %v", err)
	}

	loaded, err := store.Service(ctx)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if loaded.JellyfinAPIKey != "key-2" {
		t.Fatalf("expected last write to win, got %q", loaded.JellyfinAPIKey)
	}
	if loaded.MonitorMediaAdded || !loaded.MonitorTranscoding {
		t.Fatalf("unexpected flags: %+v", loaded)
	}
	if loaded.MediaAddedTimeframe != settings.Timeframe1Hour {
		t.Fatalf("expected media_added timeframe preserved, got %q", loaded.MediaAddedTimeframe)
	}
	if loaded.TranscodingTimeframe != settings.DefaultTimeframe {
		t.Fatalf("expected unknown timeframe stored as default, got %q", loaded.TranscodingTimeframe)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Configured {
		t.Fatal("expected configured after save")
	}
}

func TestSaveServiceValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []settings.Service{
		{JellyfinURL: "", JellyfinAPIKey: "k"},
		{JellyfinURL: "jellyfin.local", JellyfinAPIKey: "k"},
		{JellyfinURL: "ftp://jellyfin.local", JellyfinAPIKey: "k"},
		{JellyfinURL: "http://jellyfin.local", JellyfinAPIKey: "  "},
	}
	for _, svc := range cases {
		_, err := store.SaveService(ctx, svc)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", svc, err)
		}
	}
	if _, err := store.Service(ctx); !settings.IsNotConfigured(err) {
		t.Fatalf("invalid saves must not create a row, got %v", err)
	}
}

func TestSeedServiceOnlyWhenAbsent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeded, err := store.SeedService(ctx, settings.Service{JellyfinURL: "http://a.local", JellyfinAPIKey: "seed"})
	if err != nil || !seeded {
		t.Fatalf("expected first seed to write, got seeded=%v err=%v", seeded, err)
	}
	seeded, err = store.SeedService(ctx, settings.Service{JellyfinURL: "http://b.local", JellyfinAPIKey: "other"})
	if err != nil || seeded {
		t.Fatalf("expected second seed to be skipped, got seeded=%v err=%v", seeded, err)
	}
	svc, err := store.Service(ctx)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if svc.JellyfinURL != "http://a.local" {
		t.Fatalf("seed overwrote existing row: %q", svc.JellyfinURL)
	}
}

func TestSMTPRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.SMTP(ctx); !settings.IsNotConfigured(err) {
		t.Fatalf("expected unconfigured smtp, got %v", err)
	}
	if _, err := store.SaveSMTP(ctx, settings.SMTP{Host: "smtp.local", Port: 0, Sender: "a@b.c"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected port validation error, got %v", err)
	}
	if _, err := store.SaveSMTP(ctx, settings.SMTP{Host: "smtp.local", Port: 587, Sender: "jw@example.com", UseTLS: true, Password: "pw"}); err != nil {
		t.Fatalf("SaveSMTP: %v", err)
	}
	got, err := store.SMTP(ctx)
	if err != nil {
		t.Fatalf("SMTP: %v", err)
	}
	if got.Host != "smtp.local" || got.Port != 587 || !got.UseTLS || got.Password != "pw" {
		t.Fatalf("unexpected smtp row: %+v", got)
	}
}

func TestPeopleCRUD(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	alice, err := store.CreatePerson(ctx, settings.Person{Name: "Alice", Email: "Alice@Example.com"})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	if alice.ID == 0 || alice.Email != "alice@example.com" {
		t.Fatalf("unexpected person: %+v", alice)
	}
	if _, err := store.CreatePerson(ctx, settings.Person{Name: "Dup", Email: "alice@example.com"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate email rejection, got %v", err)
	}
	if _, err := store.CreatePerson(ctx, settings.Person{Name: "Bob", Email: "not-an-email"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid email rejection, got %v", err)
	}
	if _, err := store.CreatePerson(ctx, settings.Person{Name: "Eve", Email: "Eve <eve@example.com>"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected display-name address rejection, got %v", err)
	}
	if _, err := store.CreatePerson(ctx, settings.Person{Name: "bob", Email: "bob@example.com"}); err != nil {
		t.Fatalf("CreatePerson bob: %v", err)
	}

	alice.Name = "Alice Cooper"
	updated, err := store.UpdatePerson(ctx, alice)
	if err != nil {
		t.Fatalf("UpdatePerson: %v", err)
	}
	if updated.Name != "Alice Cooper" {
		t.Fatalf("unexpected updated name %q", updated.Name)
	}

	people, err := store.ListPeople(ctx)
	if err != nil {
		t.Fatalf("ListPeople: %v", err)
	}
	if len(people) != 2 || people[0].Name != "Alice Cooper" || people[1].Name != "bob" {
		t.Fatalf("unexpected people order: %+v", people)
	}

	if _, err := store.GetPerson(ctx, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeletePerson(ctx, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestAutoSendsCascadeWithPerson(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	person, err := store.CreatePerson(ctx, settings.Person{Name: "Carol", Email: "carol@example.com"})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	if _, err := store.CreateAutoSend(ctx, settings.AutoSend{PersonID: 42, Subject: "x"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected unknown person rejection, got %v", err)
	}

	send, err := store.CreateAutoSend(ctx, settings.AutoSend{
		PersonID: person.ID,
		Subject:  "Weekly digest",
		Interval: "bogus",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("CreateAutoSend: %v", err)
	}
	if send.Interval != settings.DefaultTimeframe {
		t.Fatalf("expected default interval, got %q", send.Interval)
	}
	if send.LastSentAt != nil {
		t.Fatalf("expected nil last_sent_at, got %v", send.LastSentAt)
	}

	sentAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	send.LastSentAt = &sentAt
	send.Interval = settings.Timeframe4Hours
	send.Enabled = false
	updated, err := store.UpdateAutoSend(ctx, send)
	if err != nil {
		t.Fatalf("UpdateAutoSend: %v", err)
	}
	if updated.Enabled || updated.Interval != settings.Timeframe4Hours {
		t.Fatalf("unexpected updated auto-send: %+v", updated)
	}
	if updated.LastSentAt == nil || !updated.LastSentAt.Equal(sentAt) {
		t.Fatalf("unexpected last_sent_at: %v", updated.LastSentAt)
	}

	list, err := store.ListAutoSends(ctx, person.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAutoSends = %v, %v", list, err)
	}

	if err := store.DeletePerson(ctx, person.ID); err != nil {
		t.Fatalf("DeletePerson: %v", err)
	}
	list, err = store.ListAutoSends(ctx, 0)
	if err != nil {
		t.Fatalf("ListAutoSends after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected cascade delete, still have %+v", list)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.SchemaVersion == "" || health.SchemaVersion != health.ExpectedVersion {
		t.Fatalf("schema version %q, expected %q", health.SchemaVersion, health.ExpectedVersion)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if health.Configured {
		t.Fatal("fresh store should be unconfigured")
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := settings.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.SaveService(context.Background(), settings.Service{JellyfinURL: "http://x.local", JellyfinAPIKey: "k"}); err != nil {
		t.Fatalf("SaveService: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.Service(context.Background()); err != nil {
		t.Fatalf("expected row after reopen, got %v", err)
	}
}

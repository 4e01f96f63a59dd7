package seed

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/models"
	"github.com/friendsincode/playlist_gen/internal/smartlabel"
	"github.com/friendsincode/playlist_gen/internal/store"
)

func newStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Track{}, &models.Label{}, &models.TrackLabel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db, zerolog.Nop())
}

func loadDemo(t *testing.T) *Fixture {
	t.Helper()
	f, err := os.Open("testdata/demo.yaml")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	fx, err := Load(f)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return fx
}

func TestApplyDemoFixture(t *testing.T) {
	st := newStore(t)
	engine := smartlabel.New(st, zerolog.Nop(), smartlabel.Options{
		Now: func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) },
	})
	ctx := context.Background()

	res, err := Apply(ctx, st, loadDemo(t), engine.Check)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res != (Result{Users: 1, Tracks: 3, PlainLabels: 1, SmartLabels: 3}) {
		t.Fatalf("unexpected result %+v", res)
	}

	smart, err := st.FindSmartLabels(ctx, "demo")
	if err != nil {
		t.Fatalf("find smart labels: %v", err)
	}
	batch := make([]smartlabel.SmartLabel, 0, len(smart))
	names := map[int64]string{}
	for _, l := range smart {
		if strings.Contains(*l.SmartCriteria, "{") {
			t.Fatalf("placeholder left in %q", *l.SmartCriteria)
		}
		batch = append(batch, smartlabel.SmartLabel{ID: l.ID, Criteria: *l.SmartCriteria})
		names[l.ID] = l.Name
	}

	got := map[string]int{}
	for id, n := range engine.CountMatches(ctx, "demo", batch, nil) {
		got[names[id]] = n
	}
	want := map[string]int{"Fresh": 2, "Clean favorites": 1, "Swift deep cuts": 1}
	for name, n := range want {
		if got[name] != n {
			t.Errorf("%s: got %d matches, want %d", name, got[name], n)
		}
	}
}

func TestApplyIsRepeatableForTracks(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	fx := &Fixture{Users: []User{{ID: "u", Tracks: []Track{{SpotifyID: "a", Name: "A"}}}}}

	for i := 0; i < 2; i++ {
		if _, err := Apply(ctx, st, fx, nil); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	tracks, err := st.FindTracksByUser(ctx, "u")
	if err != nil {
		t.Fatalf("find tracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected upsert to keep 1 track, got %d", len(tracks))
	}
}

func TestApplyRejectsInvalidCriteria(t *testing.T) {
	st := newStore(t)
	engine := smartlabel.New(st, zerolog.Nop(), smartlabel.Options{})
	fx := &Fixture{Users: []User{{
		ID:     "u",
		Labels: []Label{{Name: "broken", Criteria: "label:{missing}"}},
	}}}

	_, err := Apply(context.Background(), st, fx, engine.Check)
	if !errors.Is(err, criteria.ErrInvalidCriteria) {
		t.Fatalf("expected invalid criteria, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing user id", "users:\n  - display_name: x\n"},
		{"missing spotify id", "users:\n  - id: u\n    tracks:\n      - name: x\n"},
		{"unknown field", "users:\n  - id: u\n    colour: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

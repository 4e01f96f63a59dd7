package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Track{}, &models.Label{}, &models.TrackLabel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

// seedLibrary creates two users. u1 has tracks 1..4 and labels 10 (tracks 1,2),
// 11 (empty), 12 (smart, with a stale join row on track 3). u2 has track 5 and label 20.
func seedLibrary(t *testing.T, db *gorm.DB) {
	t.Helper()
	day := 24 * time.Hour
	users := []models.User{{ID: "u1", DisplayName: "One"}, {ID: "u2", DisplayName: "Two"}}
	tracks := []models.Track{
		{ID: 1, UserID: "u1", SpotifyID: "s1", Name: "Love Story", Artist: "Taylor Swift", AlbumName: "Fearless", Explicit: false,
			DateAdded: testNow.Add(-10 * day), DateReleased: time.Date(2008, time.November, 11, 0, 0, 0, 0, time.UTC)},
		{ID: 2, UserID: "u1", SpotifyID: "s2", Name: "Humble", Artist: "Kendrick Lamar", AlbumName: "DAMN.", Explicit: true,
			DateAdded: testNow.Add(-2 * day), DateReleased: time.Date(2017, time.April, 14, 0, 0, 0, 0, time.UTC)},
		{ID: 3, UserID: "u1", SpotifyID: "s3", Name: "Red", Artist: "Taylor Swift", AlbumName: "Red", Explicit: false,
			DateAdded: testNow.Add(-400 * day), DateReleased: time.Date(2012, time.October, 22, 0, 0, 0, 0, time.UTC)},
		{ID: 4, UserID: "u1", SpotifyID: "s4", Name: "Swiftly", Artist: "taylor swiftie", AlbumName: "Red", Explicit: true,
			DateAdded: testNow.Add(-30 * day), DateReleased: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 5, UserID: "u2", SpotifyID: "s5", Name: "Other", Artist: "Taylor Swift", AlbumName: "Red", Explicit: false,
			DateAdded: testNow.Add(-1 * day), DateReleased: time.Date(2012, time.October, 22, 0, 0, 0, 0, time.UTC)},
	}
	labels := []models.Label{
		{ID: 10, UserID: "u1", Name: "Favorites"},
		{ID: 11, UserID: "u1", Name: "Empty"},
		{ID: 12, UserID: "u1", Name: "Recent", SmartCriteria: strPtr("added<7d")},
		{ID: 20, UserID: "u2", Name: "Theirs"},
	}
	links := []models.TrackLabel{
		{TrackID: 1, LabelID: 10},
		{TrackID: 2, LabelID: 10},
		{TrackID: 3, LabelID: 12},
		{TrackID: 5, LabelID: 20},
	}
	for _, rows := range []any{&users, &tracks, &labels, &links} {
		if err := db.Create(rows).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func newSeededStore(t *testing.T) *GormStore {
	db := newTestDB(t)
	seedLibrary(t, db)
	return New(db, zerolog.Nop())
}

func trackIDs(tracks []TrackSnapshot) []int64 {
	ids := make([]int64, 0, len(tracks))
	for _, tr := range tracks {
		ids = append(ids, tr.ID)
	}
	return ids
}

func TestFindTracksByUser(t *testing.T) {
	s := newSeededStore(t)

	tracks, err := s.FindTracksByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("find tracks: %v", err)
	}
	if got := trackIDs(tracks); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("unexpected tracks %v", got)
	}
	if tracks[1].Album != "DAMN." || !tracks[1].Explicit {
		t.Fatalf("snapshot fields not mapped: %+v", tracks[1])
	}

	none, err := s.FindTracksByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("find tracks: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no tracks, got %v", trackIDs(none))
	}
}

func TestFindNonSmartLabelsByUser(t *testing.T) {
	s := newSeededStore(t)

	labels, err := s.FindNonSmartLabelsByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("find labels: %v", err)
	}
	want := []LabelMembership{
		{ID: 10, TrackIDs: []int64{1, 2}},
		{ID: 11, TrackIDs: []int64{}},
	}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %+v, want %+v", labels, want)
	}
}

func TestFindNonSmartLabelIDs(t *testing.T) {
	s := newSeededStore(t)

	found, err := s.FindNonSmartLabelIDs(context.Background(), "u1", []int64{10, 12, 20, 99})
	if err != nil {
		t.Fatalf("find label ids: %v", err)
	}
	if !reflect.DeepEqual(found, []int64{10}) {
		t.Fatalf("unexpected ids %v", found)
	}
}

func TestFindTracksMatching(t *testing.T) {
	s := newSeededStore(t)

	tests := []struct {
		criteria string
		want     []int64
	}{
		{"explicit", []int64{2, 4}},
		{"clean", []int64{1, 3}},
		{"label:10", []int64{1, 2}},
		{"!label:10", []int64{3, 4}},
		{"unlabeled", []int64{3, 4}},
		{"!unlabeled", []int64{1, 2}},
		{`artist:"Swift"`, []int64{1, 3}},
		{`album:"Red"`, []int64{3, 4}},
		{"added<7d", []int64{2}},
		{"added>=1y", []int64{3}},
		{"released=2012", []int64{3}},
		{"released<=11-11-2008", []int64{1}},
		{"released>2012", []int64{2, 4}},
		{"explicit || added<3d", []int64{2, 4}},
		{`label:10 && clean || album:"Red"`, []int64{1, 3, 4}},
		{`!(artist:"Taylor" || explicit)`, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.criteria, func(t *testing.T) {
			node, err := criteria.ParseString(tt.criteria)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			filter, err := criteria.ToFilter(node, criteria.CompileOptions{Now: testNow, Location: time.UTC})
			if err != nil {
				t.Fatalf("to filter: %v", err)
			}
			tracks, err := s.FindTracksMatching(context.Background(), "u1", filter)
			if err != nil {
				t.Fatalf("find matching: %v", err)
			}
			if got := trackIDs(tracks); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("%s matched %v, want %v", tt.criteria, got, tt.want)
			}
		})
	}
}

func TestFindTracksMatchingRejectsMalformedFilter(t *testing.T) {
	s := newSeededStore(t)

	_, err := s.FindTracksMatching(context.Background(), "u1", criteria.Filter{Kind: criteria.FilterNot})
	if err == nil {
		t.Fatal("expected malformed filter to fail")
	}
}

func TestListLabels(t *testing.T) {
	s := newSeededStore(t)

	labels, total, err := s.ListLabels(context.Background(), "u1", 0, 2)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 labels in total, got %d", total)
	}
	if len(labels) != 2 || labels[0].ID != 10 || labels[0].TrackCount != 2 || labels[1].TrackCount != 0 {
		t.Fatalf("unexpected first page %+v", labels)
	}

	labels, _, err = s.ListLabels(context.Background(), "u1", 1, 2)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	if len(labels) != 1 || labels[0].ID != 12 || labels[0].SmartCriteria == nil {
		t.Fatalf("unexpected second page %+v", labels)
	}
	if labels[0].TrackCount != 0 {
		t.Fatalf("smart label count should be left to the caller, got %d", labels[0].TrackCount)
	}
}

func TestFindSmartLabelsAndEnsureUser(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	smart, err := s.FindSmartLabels(ctx, "u1")
	if err != nil {
		t.Fatalf("find smart labels: %v", err)
	}
	if len(smart) != 1 || smart[0].ID != 12 {
		t.Fatalf("unexpected smart labels %+v", smart)
	}

	if err := s.EnsureUser(ctx, "u1"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := s.EnsureUser(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

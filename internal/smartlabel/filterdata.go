/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package smartlabel

import (
	"context"
	"fmt"

	"github.com/friendsincode/playlist_gen/internal/store"
)

// FilterData is the in-memory evaluation context for one user. It is never
// modified after it is built.
type FilterData struct {
	Tracks []store.TrackSnapshot
	// IndexedLabels maps each non-smart label id to the ids of its tracks.
	IndexedLabels map[int64]map[int64]struct{}
	// Unlabeled holds the ids of tracks that carry no non-smart label.
	Unlabeled map[int64]struct{}
}

// HasLabel reports whether the track carries the label. ok is false when the
// label is not one of the user's non-smart labels.
func (d *FilterData) HasLabel(labelID, trackID int64) (has, ok bool) {
	members, ok := d.IndexedLabels[labelID]
	if !ok {
		return false, false
	}
	_, has = members[trackID]
	return has, true
}

// BuildFilterData indexes tracks and label memberships. Membership rows for
// tracks outside the list are kept in the index but never match anything.
func BuildFilterData(tracks []store.TrackSnapshot, labels []store.LabelMembership) *FilterData {
	data := &FilterData{
		Tracks:        tracks,
		IndexedLabels: make(map[int64]map[int64]struct{}, len(labels)),
		Unlabeled:     make(map[int64]struct{}, len(tracks)),
	}
	for _, tr := range tracks {
		data.Unlabeled[tr.ID] = struct{}{}
	}
	for _, l := range labels {
		members := make(map[int64]struct{}, len(l.TrackIDs))
		for _, id := range l.TrackIDs {
			members[id] = struct{}{}
			delete(data.Unlabeled, id)
		}
		data.IndexedLabels[l.ID] = members
	}
	return data
}

// loadFilterData fetches and indexes one user's library.
func loadFilterData(ctx context.Context, s TrackStore, userID string) (*FilterData, error) {
	tracks, err := s.FindTracksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load tracks for %s: %w", userID, err)
	}
	labels, err := s.FindNonSmartLabelsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load labels for %s: %w", userID, err)
	}
	return BuildFilterData(tracks, labels), nil
}

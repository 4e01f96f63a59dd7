package smartlabel

import (
	"testing"
	"time"

	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func library() *FilterData {
	utc := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	return BuildFilterData(
		[]store.TrackSnapshot{
			{ID: 1, Name: "Love Story", Artist: "Taylor Swift", Album: "Fearless", DateAdded: testNow.AddDate(0, -2, 0), DateReleased: utc(2008, time.November, 11)},
			{ID: 2, Name: "Humble", Artist: "Kendrick Lamar", Album: "DAMN.", Explicit: true, DateAdded: testNow.AddDate(0, 0, -1), DateReleased: utc(2017, time.April, 14)},
			{ID: 3, Name: "Red", Artist: "Taylor Swift", Album: "Red", DateAdded: testNow.AddDate(-2, 0, 0), DateReleased: utc(2012, time.October, 22)},
		},
		[]store.LabelMembership{
			{ID: 10, TrackIDs: []int64{1}},
			{ID: 11, TrackIDs: []int64{}},
		},
	)
}

func evalIDs(t *testing.T, input string) []int64 {
	t.Helper()
	node, err := criteria.ParseString(input)
	require.NoError(t, err)
	res, err := Evaluate(node, library(), criteria.CompileOptions{Now: testNow, Location: time.UTC})
	require.NoError(t, err)
	return ids(res.Tracks)
}

func TestBuildFilterData(t *testing.T) {
	data := library()

	assert.Len(t, data.IndexedLabels, 2)
	assert.Equal(t, map[int64]struct{}{2: {}, 3: {}}, data.Unlabeled)

	has, ok := data.HasLabel(10, 1)
	assert.True(t, has)
	assert.True(t, ok)
	has, ok = data.HasLabel(11, 1)
	assert.False(t, has)
	assert.True(t, ok)
	_, ok = data.HasLabel(12, 1)
	assert.False(t, ok)
}

func TestEvaluateKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  []int64
	}{
		{"clean", []int64{1, 3}},
		{"explicit", []int64{2}},
		{"unlabeled", []int64{2, 3}},
		{"label:10", []int64{1}},
		{"label:11", []int64{}},
		{`artist:"Swift"`, []int64{1, 3}},
		{`artist:"swift"`, []int64{}},
		{`album:"Red"`, []int64{3}},
		{`album:"Re"`, []int64{}},
		{"added<7d", []int64{2}},
		{"added>1y", []int64{3}},
		{"added=2m", []int64{1}},
		{"released>=2012", []int64{2, 3}},
		{"released=4-14-2017", []int64{2}},
		{"released<2009", []int64{1}},
		{"clean && !label:10 || explicit", []int64{2, 3}},
		{"clean && (!label:10 || explicit)", []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, evalIDs(t, tt.input))
		})
	}
}

func TestCompileChecksLabelsOnce(t *testing.T) {
	node, err := criteria.ParseString("explicit || label:42")
	require.NoError(t, err)

	_, err = Compile(node, library(), criteria.CompileOptions{Now: testNow})
	var unknown *criteria.UnknownLabelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int64(42), unknown.LabelID)
}

func TestEvaluateEmptyLibrary(t *testing.T) {
	node, err := criteria.ParseString("unlabeled || clean")
	require.NoError(t, err)

	res, err := Evaluate(node, BuildFilterData(nil, nil), criteria.CompileOptions{Now: testNow})
	require.NoError(t, err)
	assert.Empty(t, res.Tracks)
}

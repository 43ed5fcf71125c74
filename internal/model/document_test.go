package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostFromDoc_TakesMetadata(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := Document{
		Collection: CollectionPosts,
		ID:         "p1",
		CreatedAt:  ts,
		Fields: map[string]any{
			"uid":          "u1",
			"title":        "t",
			"content":      "c",
			"userName":     "Ann",
			"profileImage": "img://a",
		},
	}
	p, err := PostFromDoc(d)
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, ts, p.CreatedAt)
	require.Equal(t, "Ann", p.UserName)
	require.Equal(t, LocalPost{ID: "p1", UID: "u1", Title: "t", Content: "c"}, p.Local())
}

func TestHabitFromDoc_NumbersAndEmptyTasks(t *testing.T) {
	// JSON numbers arrive as float64 in a field map.
	h, err := HabitFromDoc(Document{Fields: map[string]any{"uid": "u1", "completedTasks": float64(3)}})
	require.NoError(t, err)
	require.Equal(t, 3, h.CompletedTasks)
	require.NotNil(t, h.Tasks)
	require.Empty(t, h.Tasks)
}

func TestFields_RoundTripUser(t *testing.T) {
	f, err := Fields(User{UID: "u1", Name: "Ann", Email: "a@x", Goal: GoalHealth})
	require.NoError(t, err)
	require.Equal(t, "Health and Wellness", f["goal"])
	_, hasImage := f["image"]
	require.False(t, hasImage)

	u, err := UserFromDoc(Document{Fields: f})
	require.NoError(t, err)
	require.Equal(t, "Ann", u.Name)
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewProject(t *testing.T) {
	t.Run("defaults max selection and status", func(t *testing.T) {
		p, err := NewProject("user-1", " Wedding ", "Alice", nil)

		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "user-1", p.UserID)
		assert.Equal(t, "Wedding", p.Title)
		assert.Equal(t, DefaultMaxSelection, p.MaxSelection)
		assert.Equal(t, StatusActive, p.Status)
		assert.True(t, p.IsMutable())
	})

	t.Run("uses explicit max selection", func(t *testing.T) {
		p, err := NewProject("user-1", "Wedding", "Alice", intPtr(2))
		require.NoError(t, err)
		assert.Equal(t, 2, p.MaxSelection)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewProject("user-1", "", "Alice", nil)
		assert.ErrorIs(t, err, ErrProjectTitleRequired)

		_, err = NewProject("user-1", "Wedding", "  ", nil)
		assert.ErrorIs(t, err, ErrProjectClientRequired)

		_, err = NewProject("", "Wedding", "Alice", nil)
		assert.ErrorIs(t, err, ErrProjectOwnerRequired)
	})

	t.Run("rejects non-positive max selection", func(t *testing.T) {
		_, err := NewProject("user-1", "Wedding", "Alice", intPtr(0))
		assert.ErrorIs(t, err, ErrInvalidMaxSelection)
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestProject_Lifecycle(t *testing.T) {
	t.Run("submit moves active to submitted once", func(t *testing.T) {
		p, err := NewProject("u", "t", "c", nil)
		require.NoError(t, err)

		changed, err := p.Submit()
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusSubmitted, p.Status)
		assert.False(t, p.IsMutable())

		changed, err = p.Submit()
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, StatusSubmitted, p.Status)
	})

	t.Run("submit of archived project is locked", func(t *testing.T) {
		p := &Project{Status: StatusArchived}
		_, err := p.Submit()
		assert.ErrorIs(t, err, ErrSelectionLocked)
		assert.Equal(t, StatusArchived, p.Status)
	})

	t.Run("archive from any state", func(t *testing.T) {
		p := &Project{Status: StatusSubmitted}
		assert.True(t, p.Archive())
		assert.Equal(t, StatusArchived, p.Status)
		assert.False(t, p.Archive())
	})

	t.Run("only owner can edit", func(t *testing.T) {
		p := &Project{UserID: "owner"}
		assert.True(t, p.CanEdit("owner"))
		assert.False(t, p.CanEdit("someone"))
		assert.False(t, p.CanEdit(""))
	})
}

func TestProject_Filenames(t *testing.T) {
	p := &Project{Title: "Summer Wedding 2024", ClientName: "Alice"}
	assert.Equal(t, "Selected_Summer_Wedding_2024_Alice.zip", p.ArchiveFilename())
	assert.Equal(t, "selected_photos_Summer_Wedding_2024.csv", p.CSVFilename())
}

// Package store persists earthquake events as a newest-first CSV dataset.
package store

import (
	"errors"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// DefaultRotateBytes is the size past which the primary dataset is archived.
const DefaultRotateBytes = 50 << 20

// Merge outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeAppended  = "appended"
	OutcomeRotated   = "rotated"
	OutcomeNoNewData = "no_new_data"
)

// ErrCorruptDataset is returned when the persisted file cannot be parsed.
var ErrCorruptDataset = errors.New("corrupt dataset")

// MergeResult describes what a merge did to the dataset.
type MergeResult struct {
	Outcome string
	// Added holds the events written by this merge, newest first.
	Added []domain.EarthquakeEvent
	// ArchivePath is set when the previous dataset was rotated away.
	ArchivePath string
}

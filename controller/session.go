package controller

import (
	"sync"

	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/util"
	"github.com/pkg/errors"
)

// Session holds the state of one interactive run: the loaded batch, the
// selected image and the current detection settings. It is safe for
// concurrent use.
type Session struct {
	mu       sync.RWMutex
	images   []util.ImageFile
	selected int
	settings config.Settings
	applied  *config.Settings
}

// NewSession creates a session over a batch of images.
//
// Arguments:
//   - images: The batch, in paging order.
//   - settings: The initial detection settings.
//
// Returns:
//   - *Session: The session with the first image selected.
//   - error: A *config.MalformedConfigurationError for invalid settings.
func NewSession(images []util.ImageFile, settings config.Settings) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		images:   append([]util.ImageFile(nil), images...),
		settings: settings,
	}, nil
}

// Len returns the number of images in the batch.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Image returns the image at index i.
func (s *Session) Image(i int) (util.ImageFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.images) {
		return util.ImageFile{}, false
	}
	return s.images[i], true
}

// Selected returns the index of the selected image.
func (s *Session) Selected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Select makes image i the selected one.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.images) {
		return errors.Errorf("image index %d is outside [0, %d)", i, len(s.images))
	}
	s.selected = i
	return nil
}

// Settings returns the current detection settings.
func (s *Session) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the detection settings. Invalid settings are rejected
// and the previous ones kept.
func (s *Session) SetSettings(settings config.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// ConfigChanged reports whether the settings differ from the ones the last
// analysis ran with. It is true before the first analysis.
func (s *Session) ConfigChanged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied == nil || *s.applied != s.settings
}

// markApplied records the settings an analysis ran with.
func (s *Session) markApplied(settings config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = &settings
}

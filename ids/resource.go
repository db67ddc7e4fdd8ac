package ids

import (
	"errors"

	"github.com/google/uuid"
)

// ErrResourceIDInvalid is returned by [ParseResourceID].
var ErrResourceIDInvalid = errors.New("invalid resource id")

// NewResourceID returns a random 128-bit identifier in canonical
// hyphenated lowercase form. Owned resources use these instead of counters.
func NewResourceID() string {
	return uuid.NewString()
}

// ParseResourceID validates raw and returns its canonical form.
func ParseResourceID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrResourceIDInvalid
	}
	canonical := id.String()
	if canonical != raw {
		return "", ErrResourceIDInvalid
	}
	return canonical, nil
}

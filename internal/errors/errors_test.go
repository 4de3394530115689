package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(NewFetchError("rss", "https://example.com/feed", cause), "collect feeds")

	var fe *FetchError
	assert.True(t, As(err, &fe))
	assert.Equal(t, "rss", fe.Source)
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "fetch error [rss] https://example.com/feed")
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"raw file", Wrapf(ErrRawFileMissing, "day %s", "2024-01-02"), true},
		{"processed file", ErrProcessedFileMissing, true},
		{"reference data", NewReferenceDataError("symbols.csv", ErrSymbolIndexEmpty), true},
		{"fetch", NewFetchError("yahoo", "TCS", fmt.Errorf("timeout")), false},
		{"malformed", NewMalformedInputError("u1", "published_at", "bad date"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	valid := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id with underscore and dash", "a_b-c_d-e_f", "a_b-c_d-e_f"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url extra params", "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL123", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short url with query", "https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile host", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"music host", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"schemeless url", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"schemeless short url", "youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"surrounding whitespace", "  dQw4w9WgXcQ\n", "dQw4w9WgXcQ"},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractVideoID(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abc123"},
		{"too long", "dQw4w9WgXcQdQw4w9WgXcQ"},
		{"bad characters", "dQw4w9WgXc!"},
		{"unrelated url", "https://example.com/watch?v=dQw4w9WgXcQ"},
		{"watch url without v", "https://www.youtube.com/watch?list=PL123"},
		{"short url bad id", "https://youtu.be/tooshort"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractVideoID(tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestIsVideoID(t *testing.T) {
	assert.True(t, isVideoID("dQw4w9WgXcQ"))
	assert.True(t, isVideoID("___________"))
	assert.False(t, isVideoID(""))
	assert.False(t, isVideoID("dQw4w9WgXc"))
	assert.False(t, isVideoID("dQw4w9WgXc "))
}

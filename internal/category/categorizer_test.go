package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_SecurityKeyword(t *testing.T) {
	got := Categorize(Input{
		Type:  "constraint",
		Title: "must validate auth tokens",
		Text:  "found a security vulnerability in the login flow",
	})
	assert.Equal(t, "security", got)
}

func TestCategorize_TestingFilePattern(t *testing.T) {
	got := Categorize(Input{
		Type:          "change",
		Title:         "added coverage",
		FilesModified: []string{"internal/foo/foo_test.go"},
	})
	assert.Equal(t, "testing", got)
}

func TestCategorize_Deterministic(t *testing.T) {
	in := Input{Type: "decision", Title: "pick a module boundary", Text: "architecture discussion"}
	a := Categorize(in)
	b := Categorize(in)
	assert.Equal(t, a, b)
}

func TestCategorize_AllZeroIsGeneral(t *testing.T) {
	got := Categorize(Input{Type: "command", Title: "ran ls"})
	assert.Equal(t, "general", got)
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Go Basics":                  "go-basics",
		"  Advanced   Go!  ":         "advanced-go",
		"C++ & Rust: A Comparison":   "c-rust-a-comparison",
		"100 Days of Code":           "100-days-of-code",
		"---already---slugged---":    "already-slugged",
		"UPPER Case TITLE":           "upper-case-title",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "html", path: "docs/index.html", want: "text/html; charset=utf-8"},
		{name: "json", path: "report.json", want: "application/json"},
		{name: "yaml-as-text", path: "config.yaml", want: "text/plain; charset=utf-8"},
		{name: "markdown-as-text", path: "README.md", want: "text/plain; charset=utf-8"},
		{name: "unknown", path: "artifact.bin123", want: "application/octet-stream"},
		{name: "no-extension", path: "LICENSE", want: "application/octet-stream"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, DetectContentType(test.path))
		})
	}
}

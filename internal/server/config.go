package server

import (
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/blob"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	HTTP   HTTPConfig
	Blob   blob.Config
	Auth   auth.Config
	DBPath string
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
}

// TLSEnabled reports whether the server terminates TLS itself.
func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

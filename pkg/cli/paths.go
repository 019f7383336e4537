package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the ancpanel directories under the home directory.
type Paths struct {
	HomeDir string
}

// NewPaths returns Paths for the current user.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.ancpanel.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns ~/.ancpanel/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// DataDir returns ~/.ancpanel/data.
func (p *Paths) DataDir() string {
	return filepath.Join(p.BaseDir(), "data")
}

// CredentialsDir returns the badger directory holding the API key of the
// named context, ~/.ancpanel/data/credentials/<context>. An empty context
// maps to "default".
func (p *Paths) CredentialsDir(context string) string {
	if context == "" {
		context = "default"
	}
	return filepath.Join(p.DataDir(), "credentials", context)
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}

package cli

import (
	"os"
	"path/filepath"
)

// Paths is the per-app directory layout under ~/.crpairs.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns the layout of appName in the user's home directory.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// AppDir is ~/.crpairs/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile is ~/.crpairs/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// IndexDir holds the badger database of corpus indexes.
func (p *Paths) IndexDir() string {
	return filepath.Join(p.AppDir(), "index")
}

// CorpusDir holds local copies of remote corpora.
func (p *Paths) CorpusDir() string {
	return filepath.Join(p.AppDir(), "corpora")
}

// Ensure creates dir (with parents) and returns it.
func Ensure(dir string) (string, error) {
	return dir, os.MkdirAll(dir, 0o755)
}

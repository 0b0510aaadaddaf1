package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/uuid/v5"
)

const configFileName = "quarry.toml"

// Config carries repository-local settings: the tmp area used by local
// fetches, lock retry values, and fetch options. A missing file yields the
// defaults.
type Config struct {
	// TmpRoot is where typed temporary directories are created.
	TmpRoot string `toml:"tmp_root"`

	// LockTries and LockWaitMS are stored and default to gitLockNumTries and
	// gitLockWaitTime. The Locked retry loops use those constants and do not
	// read these fields.
	LockTries  int `toml:"lock_tries"`
	LockWaitMS int `toml:"lock_wait_ms"`

	// Fetch behaviour. Transport here is local-path, so these record
	// intent: no proxy is consulted, certificates are not verified, and
	// FETCH_HEAD is never written.
	NoProxy         bool `toml:"no_proxy"`
	SkipCertCheck   bool `toml:"skip_cert_check"`
	UpdateFetchHead bool `toml:"update_fetch_head"`
}

func defaultConfig() *Config {
	return &Config{
		TmpRoot:         os.TempDir(),
		LockTries:       gitLockNumTries,
		LockWaitMS:      int(gitLockWaitTime.Milliseconds()),
		NoProxy:         true,
		SkipCertCheck:   true,
		UpdateFetchHead: false,
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GitDir(), configFileName)
}

// GetConfigSnapshot reads the repository config, filling unset fields with
// defaults. Fake handles get pure defaults.
func (r *Repo) GetConfigSnapshot() (*Config, error) {
	cfg := defaultConfig()
	if r.fake || r.GitDir() == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	if cfg.TmpRoot == "" {
		cfg.TmpRoot = os.TempDir()
	}
	if cfg.LockTries <= 0 {
		cfg.LockTries = gitLockNumTries
	}
	if cfg.LockWaitMS <= 0 {
		cfg.LockWaitMS = int(gitLockWaitTime.Milliseconds())
	}
	return cfg, nil
}

// WriteConfig atomically writes the repository config file.
func (r *Repo) WriteConfig(cfg *Config) error {
	if err := r.requireReal("write config"); err != nil {
		return err
	}
	if cfg == nil {
		cfg = defaultConfig()
	}

	tmp, err := os.CreateTemp(r.GitDir(), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// CreateTypedTmpDir creates a fresh directory under the configured tmp root,
// named by tag plus a random suffix. The caller owns cleanup.
func (c *Config) CreateTypedTmpDir(tag string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("tmp dir %q: %w", tag, err)
	}
	dir := filepath.Join(c.TmpRoot, fmt.Sprintf("%s-%s", tag, id))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("tmp dir %q: %w", tag, err)
	}
	return dir, nil
}

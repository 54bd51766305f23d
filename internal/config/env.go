package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Environment variables read by ApplyEnv.
const (
	EnvAllowedExtensions = "PDBSTAT_ALLOWED_EXTENSIONS"
	EnvMaxFileSize       = "PDBSTAT_MAX_FILE_SIZE"
	EnvScratchDir        = "PDBSTAT_SCRATCH_DIR"
	EnvDebug             = "PDBSTAT_DEBUG"
	EnvServerHost        = "PDBSTAT_SERVER_HOST"
	EnvServerPort        = "PDBSTAT_SERVER_PORT"
	EnvDatabasePath      = "PDBSTAT_DATABASE_PATH"
	EnvBleveIndexPath    = "PDBSTAT_BLEVE_INDEX_PATH"
)

// ApplyEnv overrides cfg with any variables set according to lookup
// (normally os.LookupEnv). PDBSTAT_MAX_FILE_SIZE accepts plain byte counts or
// sizes such as "10MiB".
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAllowedExtensions); ok {
		cfg.Upload.AllowedExtensions = NormalizeExtensions(strings.Split(v, ","))
	}
	if v, ok := get(EnvMaxFileSize); ok {
		n, err := humanize.ParseBytes(v)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid %s %q", EnvMaxFileSize, v)
		}
		cfg.Upload.MaxFileSize = int64(n)
	}
	if v, ok := get(EnvScratchDir); ok {
		cfg.Upload.ScratchDir = v
	}
	if v, ok := get(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = b
	}
	if v, ok := get(EnvServerHost); ok {
		cfg.Server.Host = v
	}
	if v, ok := get(EnvServerPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s %q", EnvServerPort, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := get(EnvDatabasePath); ok {
		cfg.Storage.DatabasePath = v
	}
	if v, ok := get(EnvBleveIndexPath); ok {
		cfg.Storage.BleveIndexPath = v
	}
	return nil
}

package config

import "errors"

// Sentinel errors for config loading. Callers match with errors.Is;
// the wrapped message carries the file-level detail.
var ErrFileDoesNotExist = errors.New("config file does not exist")
var ErrReadConfigFail = errors.New("failed to read config file")
var ErrConfigParsingFail = errors.New("failed to parse config file")
var ErrInvalidConfig = errors.New("invalid config")

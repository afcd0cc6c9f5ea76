package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names a .env file that takes precedence over the --env flag.
const EnvFileVar = "SIGNLEARNER_ENV_FILE"

// Env file sources, in the order they are tried.
const (
	SourceOverride = "override"
	SourceFlag     = "flag"
	SourceBasename = "basename"
	SourceDefault  = "default"
)

// EnvLoader applies one .env file to the process environment.
type EnvLoader struct {
	requested   *string
	defaultPath string
}

// EnvFile reports which file Load applied. Rejected lists override files that
// were named but could not be read.
type EnvFile struct {
	Path     string
	Source   string
	Rejected []string
}

type envCandidate struct {
	path   string
	source string
}

// AddEnvFlag registers an --env flag on fs and returns its loader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, usage string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if usage == "" {
		usage = "Path to the .env file"
	}
	return &EnvLoader{
		requested:   fs.String("env", defaultPath, usage),
		defaultPath: defaultPath,
	}
}

// Load applies the first readable candidate: $SIGNLEARNER_ENV_FILE, the --env
// value, its basename in the working directory, then the default path. Values
// from the file override variables already set.
func (l *EnvLoader) Load() (EnvFile, error) {
	if l == nil {
		return EnvFile{}, fmt.Errorf("env loader is nil")
	}

	var loaded EnvFile
	tried := make([]string, 0, 4)
	for _, candidate := range l.candidates() {
		tried = append(tried, candidate.path)
		if err := godotenv.Overload(candidate.path); err != nil {
			if candidate.source == SourceOverride {
				loaded.Rejected = append(loaded.Rejected, candidate.path)
			}
			continue
		}
		loaded.Path = candidate.path
		loaded.Source = candidate.source
		return loaded, nil
	}
	return loaded, fmt.Errorf("no env file could be loaded (tried %s)", strings.Join(tried, ", "))
}

func (l *EnvLoader) candidates() []envCandidate {
	requested := l.defaultPath
	if l.requested != nil {
		if value := strings.TrimSpace(*l.requested); value != "" {
			requested = value
		}
	}

	list := make([]envCandidate, 0, 4)
	seen := make(map[string]bool, 4)
	add := func(path, source string) {
		if path == "" || path == "." || seen[path] {
			return
		}
		seen[path] = true
		list = append(list, envCandidate{path: path, source: source})
	}

	add(strings.TrimSpace(os.Getenv(EnvFileVar)), SourceOverride)
	add(requested, SourceFlag)
	add(filepath.Base(requested), SourceBasename)
	add(l.defaultPath, SourceDefault)
	return list
}

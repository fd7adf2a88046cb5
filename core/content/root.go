package content

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

const (
	// DefaultDevDir is the development content root, relative to the working directory.
	DefaultDevDir = "../public"

	// PublicDirName is the content directory inside the packaged resource directory.
	PublicDirName = "public"
)

// Mode is the execution mode that decides where the content root lives.
type Mode int

const (
	// ModeDevelopment reads content from a directory next to the working directory.
	ModeDevelopment Mode = iota
	// ModePackaged reads content from the installed application's resource directory.
	ModePackaged
)

func (m Mode) String() string {
	switch m {
	case ModeDevelopment:
		return "dev"
	case ModePackaged:
		return "packaged"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "dev"/"development" or "packaged"/"release".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development", "debug":
		return ModeDevelopment, nil
	case "packaged", "release", "production", "prod":
		return ModePackaged, nil
	default:
		return ModeDevelopment, errors.NewValidation("mode", fmt.Sprintf("unknown execution mode %q", s))
	}
}

// ResourceDirFunc resolves the platform resource directory of the installed
// application.
type ResourceDirFunc func() (string, error)

// RootConfig describes how to locate the content root.
type RootConfig struct {
	// Mode selects the development or packaged location.
	Mode Mode
	// DevDir is the development root; DefaultDevDir when empty.
	DevDir string
	// ResourceDir resolves the packaged resource directory;
	// ExecutableResourceDir when nil.
	ResourceDir ResourceDirFunc
	// Override, when set, is used as the root regardless of Mode.
	Override string
}

// FixedRoot returns a RootConfig that always resolves to dir.
func FixedRoot(dir string) RootConfig {
	return RootConfig{Override: dir}
}

// ResolveRoot returns the absolute content root for cfg. The directory must
// exist; otherwise the error is a ContentRootError carrying the attempted path.
func ResolveRoot(cfg RootConfig) (string, error) {
	var dir string

	switch {
	case cfg.Override != "":
		dir = cfg.Override
	case cfg.Mode == ModePackaged:
		resourceDir := cfg.ResourceDir
		if resourceDir == nil {
			resourceDir = ExecutableResourceDir
		}
		base, err := resourceDir()
		if err != nil {
			return "", errors.NewContentRoot("", fmt.Errorf("failed to resolve resource directory: %w", err))
		}
		dir = filepath.Join(base, PublicDirName)
	default:
		dir = cfg.DevDir
		if dir == "" {
			dir = DefaultDevDir
		}
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.NewContentRoot(dir, err)
	}
	if !info.IsDir() {
		return "", errors.NewContentRoot(dir, fmt.Errorf("not a directory"))
	}

	return dir, nil
}

// ExecutableResourceDir returns the resource directory of the running
// executable: its own directory, or Contents/Resources when it runs from a
// macOS application bundle.
func ExecutableResourceDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	dir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" && filepath.Base(dir) == "MacOS" {
		return filepath.Join(filepath.Dir(dir), "Resources"), nil
	}
	return dir, nil
}

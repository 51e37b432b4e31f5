package recipe

import (
	"fmt"
	"runtime"
	"strings"
)

// Well-known operating system names.
const (
	Windows = "Windows"
	Linux   = "Linux"
	Macos   = "Macos"
	FreeBSD = "FreeBSD"
)

// Settings describes the target of a build. It is supplied by the driver
// and never modified by the lifecycle.
type Settings struct {
	OS              string
	Arch            string
	BuildType       string
	Compiler        string
	CompilerVersion string
	// CompilerStd is the declared C++ standard level, e.g. "17" or "gnu17".
	CompilerStd string
}

// DefaultSettings returns settings for the host platform.
func DefaultSettings() Settings {
	s := Settings{BuildType: "Release"}
	switch runtime.GOOS {
	case "windows":
		s.OS = Windows
		s.Compiler = "Visual Studio"
	case "darwin":
		s.OS = Macos
		s.Compiler = "apple-clang"
	case "freebsd":
		s.OS = FreeBSD
		s.Compiler = "clang"
	default:
		s.OS = Linux
		s.Compiler = "gcc"
	}
	switch runtime.GOARCH {
	case "amd64":
		s.Arch = "x86_64"
	case "386":
		s.Arch = "x86"
	case "arm64":
		s.Arch = "armv8"
	default:
		s.Arch = runtime.GOARCH
	}
	return s
}

// Set assigns a single setting by its dotted key.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "os":
		s.OS = value
	case "arch":
		s.Arch = value
	case "build_type":
		s.BuildType = value
	case "compiler":
		s.Compiler = value
	case "compiler.version":
		s.CompilerVersion = value
	case "compiler.cppstd":
		s.CompilerStd = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Apply assigns a list of "key=value" pairs in order.
func (s *Settings) Apply(pairs []string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid setting %q: want key=value", pair)
		}
		if err := s.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

func (s Settings) String() string {
	return fmt.Sprintf("os=%s arch=%s build_type=%s compiler=%s compiler.version=%s compiler.cppstd=%s",
		s.OS, s.Arch, s.BuildType, s.Compiler, s.CompilerVersion, s.CompilerStd)
}

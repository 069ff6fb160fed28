// Package util provides common utility functions and constants used across the
// ali-bastion application. This package is intentionally kept dependency-free
// (no imports from other internal/* packages) to serve as a shared foundation
// without introducing circular dependencies.
package util

const (
	// DefaultNameWidth is the width of the fixed name column used by the
	// interactive host picker and the `events` table. Names longer than the
	// column are not truncated; they simply push the next column to the right.
	//
	// Used by: internal/ui/picker.go (Render), internal/cli/root.go (newEventsCmd)
	//          and internal/appconfig/config.go (Default, Load).
	DefaultNameWidth = 20

	// RegistryDirName is the directory under the user's home that holds the
	// host registry. The name is kept for compatibility with registries written
	// by earlier releases, so existing obscured passwords stay decodable.
	RegistryDirName = ".ali-bastion"

	// RegistryFileName is the registry file inside RegistryDirName.
	RegistryFileName = "config.json"

	// AppName names the XDG configuration directory and the binary.
	AppName = "ali-bastion"
)

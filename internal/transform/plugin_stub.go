//go:build !linux && !darwin

package transform

import (
	"fmt"
	"runtime"
)

// LoadPlugins fails for any non-empty path: Go plugins need linux or darwin.
func LoadPlugins(paths []string) error {
	for _, path := range paths {
		if path != "" {
			return fmt.Errorf("load plugin %s: plugins are not supported on %s", path, runtime.GOOS)
		}
	}
	return nil
}

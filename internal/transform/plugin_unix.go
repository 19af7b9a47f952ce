//go:build linux || darwin

package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"sort"
	"strings"
)

// PluginSymbol is the exported variable every plugin must define.
const PluginSymbol = "Transformers"

// LoadPlugins opens each .so (or every compatible .so in a directory) and
// registers the modes its Transformers map exports.
func LoadPlugins(paths []string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		resolved, err := resolvePluginPaths(path)
		if err != nil {
			return err
		}
		for _, pluginPath := range resolved {
			p, err := plugin.Open(pluginPath)
			if err != nil {
				return fmt.Errorf("open plugin %s: %w", pluginPath, err)
			}
			sym, err := p.Lookup(PluginSymbol)
			if err != nil {
				return fmt.Errorf("plugin %s: missing %s symbol", pluginPath, PluginSymbol)
			}
			if err := registerPluginSymbol(pluginPath, sym); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolvePluginPaths(path string) ([]string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return resolvePluginsInDir(path)
	}
	if fileExists(path) {
		return []string{path}, nil
	}
	base := strings.TrimSuffix(path, ".so")
	candidates := []string{
		fmt.Sprintf("%s.%s.%s.so", base, runtime.GOOS, runtime.GOARCH),
		fmt.Sprintf("%s.%s.so", base, runtime.GOARCH),
	}
	for _, cand := range candidates {
		if fileExists(cand) {
			return []string{cand}, nil
		}
	}
	return nil, fmt.Errorf("plugin not found: %s (tried %s)", path, strings.Join(candidates, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func resolvePluginsInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir %s: %w", dir, err)
	}
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || !isCompatiblePlugin(entry.Name()) {
			continue
		}
		matches = append(matches, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no compatible plugins found in %s", dir)
	}
	return matches, nil
}

// isCompatiblePlugin accepts plain foo.so and foo.<arch>.so / foo.<os>.<arch>.so
// built for this platform, rejecting objects tagged for another one.
func isCompatiblePlugin(name string) bool {
	if !strings.HasSuffix(name, ".so") {
		return false
	}
	parts := strings.Split(strings.TrimSuffix(name, ".so"), ".")
	switch {
	case len(parts) >= 3 && isKnownOS(parts[len(parts)-2]):
		return parts[len(parts)-2] == runtime.GOOS && parts[len(parts)-1] == runtime.GOARCH
	case len(parts) >= 2 && isKnownArch(parts[len(parts)-1]):
		return parts[len(parts)-1] == runtime.GOARCH
	default:
		return true
	}
}

func isKnownOS(s string) bool {
	return s == "linux" || s == "darwin"
}

func isKnownArch(s string) bool {
	switch s {
	case "amd64", "arm64", "386", "arm", "ppc64le", "s390x", "riscv64":
		return true
	}
	return false
}

func registerPluginSymbol(path string, sym any) error {
	var fns map[string]func(string, []string) ([]string, error)
	switch v := sym.(type) {
	case map[string]func(string, []string) ([]string, error):
		fns = v
	case *map[string]func(string, []string) ([]string, error):
		fns = *v
	default:
		return fmt.Errorf("plugin %s: %s has incompatible type %T", path, PluginSymbol, sym)
	}
	for name, fn := range fns {
		if err := registerPlugin(name, fn); err != nil {
			return fmt.Errorf("plugin %s: %w", path, err)
		}
	}
	return nil
}

package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

// DesktopServer is one entry under "mcpServers" in claude_desktop_config.json.
type DesktopServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// DesktopConfigPath returns where Claude Desktop keeps its config on this OS.
func DesktopConfigPath() (string, error) {
	const name = "claude_desktop_config.json"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(xdg.Home, "Library", "Application Support", "Claude", name), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA is not set")
		}
		return filepath.Join(appData, "Claude", name), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "Claude", name), nil
	}
	return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
}

// SelfServer describes this binary as an MCP stdio server. The XDG
// directories are passed through so the desktop-launched process finds the
// same config and database.
func SelfServer() (DesktopServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return DesktopServer{}, fmt.Errorf("locating executable: %w", err)
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return DesktopServer{}, fmt.Errorf("resolving executable: %w", err)
	}
	return DesktopServer{
		Command: exe,
		Args:    []string{"mcp"},
		Env: map[string]string{
			"XDG_CONFIG_HOME": xdg.ConfigHome,
			"XDG_DATA_HOME":   xdg.DataHome,
			"XDG_CACHE_HOME":  xdg.CacheHome,
		},
	}, nil
}

// RegisterDesktopServer adds or replaces server name in the config file at
// path. Other servers and unrelated top-level keys are preserved.
func RegisterDesktopServer(path, name string, server DesktopServer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	doc := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	servers := map[string]json.RawMessage{}
	if existing, ok := doc["mcpServers"]; ok && string(existing) != "null" {
		if err := json.Unmarshal(existing, &servers); err != nil {
			return fmt.Errorf("parsing mcpServers: %w", err)
		}
	}

	entry, err := json.Marshal(server)
	if err != nil {
		return err
	}
	servers[name] = entry

	if doc["mcpServers"], err = json.Marshal(servers); err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}

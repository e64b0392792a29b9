// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads OAuth client credentials from a directory of
// plain-text files, from a .env file, and from the process environment.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: <service>-client-id and <service>-client-secret for
// each configured service, e.g. legifrance-client-id, judilibre-client-secret.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/olivia-legal/olivia/pkg/types"
)

// envPrefix namespaces the environment fallbacks, e.g.
// OLIVIA_LEGIFRANCE_CLIENT_ID.
const envPrefix = "OLIVIA_"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadDotenv merges a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Apply fills in empty client credentials on every configured service.
// Resolution order: explicit config value, secrets-directory file, then
// environment variable. Values already present in the config are kept.
func Apply(cfg *types.Config, secrets map[string]string) {
	for id, svc := range cfg.Services {
		if svc.ClientID == "" {
			svc.ClientID = resolve(secrets, id, "client-id")
		}
		if svc.ClientSecret == "" {
			svc.ClientSecret = resolve(secrets, id, "client-secret")
		}
		cfg.Services[id] = svc
	}
}

func resolve(secrets map[string]string, service, key string) string {
	if v, ok := secrets[service+"-"+key]; ok {
		return v
	}
	env := envPrefix + strings.ToUpper(service) + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	return strings.TrimSpace(os.Getenv(env))
}

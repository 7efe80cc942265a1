package util

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// envPrefix limits dotenv loading to this product's own variables; anything
// else in a shared .env stays untouched.
const envPrefix = "AGENCY_"

// LoadEnvFile loads AGENCY_* KEY=VALUE pairs from a dotenv file without
// overwriting variables already set in the environment. It returns the number
// of variables it set; a missing file is not an error.
func LoadEnvFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	loaded := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "export "); ok {
			line = strings.TrimSpace(after)
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}
		if os.Setenv(key, val) == nil {
			loaded++
		}
	}
	return loaded, sc.Err()
}

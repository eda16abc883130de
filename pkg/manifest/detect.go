package manifest

import (
	"archive/zip"
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
)

// DetectServerJar inspects a server jar and reports its loader type and
// game version. Fabric-style jars carry an install.properties file with
// the loader and game version recorded at install time.
func DetectServerJar(path string) (loader, gameVersion string, err error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "install.properties" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", "", err
		}
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "fabric-loader-version="):
				loader = "fabric"
			case strings.HasPrefix(line, "game-version="):
				gameVersion = strings.TrimPrefix(line, "game-version=")
			}
		}
		rc.Close()
		if err := scanner.Err(); err != nil {
			return "", "", err
		}
		break
	}

	if loader == "" || gameVersion == "" {
		return "", "", fmt.Errorf("%s: not a recognized server jar", path)
	}
	return loader, gameVersion, nil
}

// ScanServerJar searches root for a recognizable server jar and returns
// its path along with the detected loader and game version.
func ScanServerJar(root string) (jar, loader, gameVersion string, err error) {
	matches, err := filepath.Glob(filepath.Join(root, "*.jar"))
	if err != nil {
		return "", "", "", err
	}
	for _, candidate := range matches {
		l, gv, err := DetectServerJar(candidate)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}
		return abs, l, gv, nil
	}
	return "", "", "", fmt.Errorf("no recognizable server jar in %s", root)
}

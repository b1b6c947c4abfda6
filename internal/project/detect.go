// Package project resolves what project a working directory belongs to and
// keeps the alias registry that groups every identifier form of the same
// physical project under one canonical id.
package project

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AVIDS2/memorix/internal/models"
)

// Marker files that make a directory a local project even without git.
var projectMarkers = []string{"package.json", "Cargo.toml", "go.mod", "pyproject.toml"}

// Detect identifies the project for a working directory.
//
// Order: git remote (owner/repo) > local marker (local/<basename>) >
// invalid sentinel for home and system paths > placeholder/<basename>.
func Detect(dir string) models.ProjectInfo {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	if gitRoot := findGitRoot(abs); gitRoot != "" {
		remote := originRemote(gitRoot)
		if remote != "" {
			if id := NormalizeRemote(remote); id != "" {
				return models.ProjectInfo{
					ID:        id,
					Name:      filepath.Base(id),
					RootPath:  gitRoot,
					GitRemote: remote,
				}
			}
		}
		// A git repo without a usable remote is still a local project.
		return models.ProjectInfo{
			ID:       "local/" + filepath.Base(gitRoot),
			Name:     filepath.Base(gitRoot),
			RootPath: gitRoot,
		}
	}

	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(abs, marker)); err == nil {
			return models.ProjectInfo{
				ID:       "local/" + filepath.Base(abs),
				Name:     filepath.Base(abs),
				RootPath: abs,
			}
		}
	}

	if isSystemPath(abs) {
		return models.ProjectInfo{ID: models.InvalidProjectID, RootPath: abs}
	}

	return models.ProjectInfo{
		ID:       "placeholder/" + filepath.Base(abs),
		Name:     filepath.Base(abs),
		RootPath: abs,
	}
}

// findGitRoot walks up from dir looking for a .git directory.
func findGitRoot(dir string) string {
	for d := dir; ; {
		if st, err := os.Stat(filepath.Join(d, ".git")); err == nil && st.IsDir() {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return ""
		}
		d = parent
	}
}

// originRemote reads the origin URL. It asks git first (with safe.directory
// widened, since editors routinely run us against repos owned by another
// uid) and falls back to parsing .git/config directly when git refuses.
func originRemote(gitRoot string) string {
	cmd := exec.Command("git", "-c", "safe.directory=*", "config", "--get", "remote.origin.url")
	cmd.Dir = gitRoot
	out, err := cmd.Output()
	if err == nil {
		if url := strings.TrimSpace(string(out)); url != "" {
			return url
		}
	}
	return parseGitConfig(filepath.Join(gitRoot, ".git", "config"))
}

// parseGitConfig scans an INI-style git config for the origin url.
func parseGitConfig(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	inOrigin := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			if _, value, ok := strings.Cut(line, "="); ok {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// NormalizeRemote reduces any git remote URL to owner/repo form: scheme,
// credentials, host, leading path segments and a .git suffix are stripped.
// Returns "" when the URL has fewer than two path segments.
func NormalizeRemote(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	// scp-like form: git@host:owner/repo
	if at := strings.Index(u, "@"); at >= 0 && !strings.Contains(u[:at], "://") {
		u = u[at+1:]
		if colon := strings.Index(u, ":"); colon >= 0 {
			u = u[colon+1:]
		}
	} else if schemeEnd := strings.Index(u, "://"); schemeEnd >= 0 {
		u = u[schemeEnd+3:]
		if at := strings.Index(u, "@"); at >= 0 {
			u = u[at+1:]
		}
		if slash := strings.Index(u, "/"); slash >= 0 {
			u = u[slash+1:]
		} else {
			return ""
		}
	}

	parts := strings.Split(strings.Trim(u, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	// Keep the last two segments: hosts like GitLab allow nested groups.
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

// NormalizePath canonicalizes a root path for registry comparison:
// forward slashes, no trailing slash, lowercased on case-insensitive
// filesystems.
func NormalizePath(p string) string {
	out := filepath.ToSlash(p)
	out = strings.TrimSuffix(out, "/")
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		out = strings.ToLower(out)
	}
	return out
}

// isSystemPath reports whether dir is a user home or a system directory
// where storing project memory would be a mistake.
func isSystemPath(dir string) bool {
	clean := filepath.Clean(dir)
	if clean == string(filepath.Separator) {
		return true
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return true
	}
	for _, sys := range []string{"/usr", "/etc", "/bin", "/sbin", "/var", "/opt", "/tmp"} {
		if clean == sys {
			return true
		}
	}
	return false
}

// Priority ranks identifier forms: git-remote > local > placeholder.
func Priority(id string) int {
	switch {
	case strings.HasPrefix(id, "placeholder/"):
		return 0
	case strings.HasPrefix(id, "local/"):
		return 1
	default:
		return 2
	}
}

// Basename returns the part of a project id after its last slash.
func Basename(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

package models

// AliasGroup records every identifier form known to refer to one physical
// project. Canonical is always a member of Aliases and is the
// highest-priority form in the group (git-remote > local > placeholder).
type AliasGroup struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
	RootPaths []string `json:"rootPaths,omitempty"`
	GitRemote string   `json:"gitRemote,omitempty"`
}

// AliasRegistryVersion is the only on-disk registry version this build
// reads or writes. Unknown versions are rejected without touching the file.
const AliasRegistryVersion = 1

// AliasRegistryFile is the on-disk shape of .project-aliases.json.
type AliasRegistryFile struct {
	Version int          `json:"version"`
	Groups  []AliasGroup `json:"groups"`
}

// ProjectInfo is the result of project detection for a working directory.
type ProjectInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RootPath  string `json:"rootPath"`
	GitRemote string `json:"gitRemote,omitempty"`
}

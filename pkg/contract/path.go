package contract

import "path"

// ArtifactID names a single output artifact a Writer accepts: the merged
// deck, or the line-delimited JSON sidecar for a job.
type ArtifactID string

// NormalizeArtifactPath normalizes a path into a cross-platform stable
// ArtifactID: forward slashes, no redundant separators or "." / ".."
// segments, relative/absolute semantics preserved.
func NormalizeArtifactPath(p string) ArtifactID {
	s := make([]rune, 0, len(p))
	for _, r := range p {
		if r == '\\' {
			s = append(s, '/')
		} else {
			s = append(s, r)
		}
	}
	return ArtifactID(path.Clean(string(s)))
}

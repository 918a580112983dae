package document

import "strings"

// Backend identifies which storage medium holds an artifact.
type Backend string

const (
	BackendRemote Backend = "REMOTE"
	BackendLocal  Backend = "LOCAL"
)

// ArtifactRef is a tagged reference to a stored PDF artifact. The backend kind
// is carried explicitly alongside the value so deletion never has to re-derive
// ownership from the string's shape.
type ArtifactRef struct {
	Backend Backend
	Value   string
}

// IsZero reports whether the reference is empty
func (r ArtifactRef) IsZero() bool {
	return r.Value == ""
}

// ParseArtifactRef classifies a bare stored reference string: an absolute URL
// belongs to the remote object store, a root-relative path to the local file
// store. Used once, when loading rows persisted before the backend column
// existed; new rows always carry the tag.
func ParseArtifactRef(value string) (ArtifactRef, bool) {
	switch {
	case value == "":
		return ArtifactRef{}, false
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		return ArtifactRef{Backend: BackendRemote, Value: value}, true
	case strings.HasPrefix(value, "/"):
		return ArtifactRef{Backend: BackendLocal, Value: value}, true
	default:
		return ArtifactRef{}, false
	}
}

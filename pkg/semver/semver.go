package semver

import "fmt"

// Semver is a version triple as reported by btcd's version RPC
type Semver struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// NewSemver creates a new Semver
func NewSemver(major, minor, patch uint32) Semver {
	return Semver{Major: major, Minor: minor, Patch: patch}
}

// String returns the string representation
func (s Semver) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Compatible reports whether other can be used where s is required.
// Compatibility is based on major version only.
func (s Semver) Compatible(other Semver) bool {
	return s.Major == other.Major
}

// AnyCompatible checks if nodeVer is compatible with any of the given versions
func AnyCompatible(compatible []Semver, nodeVer Semver) bool {
	for _, v := range compatible {
		if v.Compatible(nodeVer) {
			return true
		}
	}
	return false
}

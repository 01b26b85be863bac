package gateway

import "github.com/Masterminds/semver/v3"

// compatibleVersions reports whether a joining client's app version
// satisfies the caret range of the version the session was created with.
// Both strings were validated as semver at frame decode time; anything
// unparseable here is treated as incompatible.
func compatibleVersions(clientVersion, sessionVersion string) bool {
	constraint, err := semver.NewConstraint("^" + sessionVersion)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

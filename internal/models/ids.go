package models

import "regexp"

var (
	// Backend resource ids look like "{prefix}_{13-digit ms timestamp}_{6 alnum}".
	resourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+_\d{13}_[a-zA-Z0-9]{6}$`)
	// Chat session ids look like "session_{12 hex}".
	sessionIDPattern = regexp.MustCompile(`^session_[0-9a-f]{12}$`)
)

// ValidID reports whether id matches the backend's resource identifier
// format. Ids are spliced into request paths, so pasted or freshly minted
// ones are checked before any call uses them.
func ValidID(id string) bool {
	return resourceIDPattern.MatchString(id)
}

// ValidSessionID reports whether id matches the backend's chat session
// identifier format.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

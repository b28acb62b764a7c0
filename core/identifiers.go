package core

import "regexp"

// basenameRE matches test-case basenames and group names (§6).
var basenameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*[A-Za-z0-9]$|^[A-Za-z0-9]$`)

// shortnameRE matches the problem shortname (§6).
var shortnameRE = regexp.MustCompile(`^[a-z0-9]+$`)

package email

import "strings"

// RedactEmail hides the recipient in logs while keeping enough to tell
// addresses apart: the first character of the local part and the domain
// survive, "amira@gmail.com" becomes "a***@gmail.com". A value without "@"
// is masked entirely.
func RedactEmail(addr string) string {
	if addr == "" {
		return ""
	}
	local, domain, ok := strings.Cut(addr, "@")
	switch {
	case !ok:
		return "***"
	case local == "":
		return "***@" + domain
	default:
		return local[:1] + "***@" + domain
	}
}

package redis

const (
	// KeyPrefixCheck is the prefix for the last probe observation of a URL
	KeyPrefixCheck = "heartbeat:check:"
	// KeyAllChecks is the key for the set of all observed URLs
	KeyAllChecks = "heartbeat:checks:all"
)

// CheckKey returns the Redis key for the observation of url
func CheckKey(url string) string {
	return KeyPrefixCheck + url
}

// AllChecksKey returns the key for the set of all observed URLs
func AllChecksKey() string {
	return KeyAllChecks
}


package contract

// KVRepository is the local persistent storage facility: synchronous,
// string-keyed, capacity-bounded. Implementations must catch their own
// failures and degrade gracefully (log and continue) rather than
// propagate them into the caller.
type KVRepository interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	// Keys returns every stored key with the given prefix.
	Keys(prefix string) []string
}

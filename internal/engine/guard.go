package engine

// Token identifies the session generation an asynchronous result belongs
// to. Tokens are opaque to everything except the guard that issued them.
type Token uint64

// VersionGuard issues a new token on every identity change and validates
// async results (GPS deliveries, fetches, submissions) against the current
// one. Stale results are dropped silently. The guard is owned by the engine
// loop; it is a backstop behind synchronous watcher cancellation, not a
// substitute for it.
type VersionGuard struct {
	current Token
}

// Bump invalidates all outstanding tokens and returns the new current one.
func (g *VersionGuard) Bump() Token {
	g.current++
	return g.current
}

// Current returns the token async work should capture at initiation.
func (g *VersionGuard) Current() Token {
	return g.current
}

// Valid reports whether a result carrying the token may still be applied.
func (g *VersionGuard) Valid(t Token) bool {
	return t == g.current && t != 0
}

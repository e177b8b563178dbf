package arenaskip

// Test hooks (kept separate so instrumentation doesn't clutter logic).
var (
	// afterBottomLinkHook runs once an insert is linked at level 0 and
	// before its upper levels are linked.
	afterBottomLinkHook func(key any)
	// afterLogicalDeleteHook runs after a remove cleared the value and
	// before the tower is marked.
	afterLogicalDeleteHook func(key any)
	// skipUnlinkHook makes a remove leave its node linked at level when it
	// returns true. Traversals and Compact must finish the unlink.
	skipUnlinkHook func(level int) bool
)

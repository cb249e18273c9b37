package strategy

// InSession reports whether utcHour falls inside the [start, end) trading
// window. Default stream settings cover the London + New York overlap.
func InSession(utcHour, start, end int) bool {
	return start <= utcHour && utcHour < end
}

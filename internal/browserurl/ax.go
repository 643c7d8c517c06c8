package browserurl

// AXReader is the in-process accessibility capability for Gecko browsers.
// Running inside our own process matters: child processes do not inherit the
// accessibility permission grant, so a helper binary would be denied where
// we are allowed. Implementations return the raw URL-bar value or empty.
type AXReader interface {
	ReadBrowserURL(pid int, windowTitle string) (string, error)
}

// UnavailableAXReader is used when the platform capability is not linked in.
// It always reports no data, which sends the resolver to the next strategy.
type UnavailableAXReader struct{}

// ReadBrowserURL always returns empty.
func (UnavailableAXReader) ReadBrowserURL(pid int, windowTitle string) (string, error) {
	return "", nil
}

package browserurl

// ChromiumScripts maps browser application names (as reported by the window
// enumerator) to the inter-app scripting command that returns the active
// tab's URL. Safari-family entries read the front document instead of a tab.
var ChromiumScripts = map[string]string{
	"Google Chrome":             `tell application "Google Chrome" to get URL of active tab of front window`,
	"Google Chrome Canary":      `tell application "Google Chrome Canary" to get URL of active tab of front window`,
	"Brave Browser":             `tell application "Brave Browser" to get URL of active tab of front window`,
	"Microsoft Edge":            `tell application "Microsoft Edge" to get URL of active tab of front window`,
	"Arc":                       `tell application "Arc" to get URL of active tab of front window`,
	"Safari":                    `tell application "Safari" to get URL of front document`,
	"Safari Technology Preview": `tell application "Safari Technology Preview" to get URL of front document`,
}

// GeckoProcessNames holds lowercase process names of Gecko-family browsers.
// Matching against an app name is case-insensitive.
var GeckoProcessNames = map[string]struct{}{
	"firefox":   {},
	"zen":       {},
	"waterfox":  {},
	"librewolf": {},
}

// GeckoBundleIDs holds bundle identifiers of the Gecko-family browsers whose
// windows the in-process accessibility reader knows how to walk.
var GeckoBundleIDs = map[string]struct{}{
	"org.mozilla.firefox":        {},
	"org.mozilla.nightly":        {},
	"app.zen-browser.zen":        {},
	"net.waterfox.waterfox":      {},
	"org.mozilla.librewolf":      {},
	"io.gitlab.librewolf-community": {},
}

// SessionProfileDirs lists per-browser profile roots relative to the user's
// application-support directory, searched by the session-file strategy.
var SessionProfileDirs = []string{
	"Firefox/Profiles",
	"zen/Profiles",
	"Waterfox/Profiles",
	"librewolf/Profiles",
}

// BrowserDisplayNames are the window-title suffixes browsers append after
// the page title, stripped when recovering the page title.
var BrowserDisplayNames = []string{
	"Zen Browser",
	"Zen",
	"Firefox",
	"Google Chrome",
	"Chrome",
	"Brave Browser",
	"Microsoft Edge",
	"Arc",
	"Safari",
	"Waterfox",
	"LibreWolf",
}

// IsChromiumOrWebKit reports whether the app has a direct scripting command.
func IsChromiumOrWebKit(appName string) bool {
	_, ok := ChromiumScripts[appName]
	return ok
}

// IsGecko reports whether the app name matches a Gecko-family process name.
func IsGecko(appName string) bool {
	_, ok := GeckoProcessNames[lower(appName)]
	return ok
}

// IsBrowser reports whether the app name belongs to any known browser family.
func IsBrowser(appName string) bool {
	return IsChromiumOrWebKit(appName) || IsGecko(appName)
}

// IsKnownGeckoBundle reports whether the bundle id is a known Gecko browser.
func IsKnownGeckoBundle(bundleID string) bool {
	_, ok := GeckoBundleIDs[bundleID]
	return ok
}

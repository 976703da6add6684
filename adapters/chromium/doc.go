// Package exportchromium acquires headless Chromium engines for the export
// pipeline and drives their pages over the DevTools protocol via chromedp.
//
// Each Acquire call starts (or, for the remote profile, connects to) a
// dedicated browser. The returned handle owns it until Close.
package exportchromium

package export

import (
	"os"
	"strings"
)

// ProfileClass identifies how an engine is obtained.
type ProfileClass string

const (
	// ProfileLocal launches a locally installed browser with standard flags.
	ProfileLocal ProfileClass = "local"
	// ProfileConstrained launches a bundled minimal browser with serverless flags.
	ProfileConstrained ProfileClass = "constrained"
	// ProfileRemote attaches to an engine already running elsewhere. It is
	// only ever selected explicitly.
	ProfileRemote ProfileClass = "remote"
)

// ProfileOverrideEnv forces a profile class regardless of markers.
const ProfileOverrideEnv = "EXPORT_ENGINE_PROFILE"

// RemoteURLEnv holds the remote engine endpoint for ProfileRemote.
const RemoteURLEnv = "EXPORT_REMOTE_URL"

// ServerlessMarkers are environment variables whose presence indicates a
// constrained execution context.
var ServerlessMarkers = []string{
	"AWS_REGION",
	"AWS_LAMBDA_FUNCTION_NAME",
	"VERCEL",
	"K_SERVICE",
}

// EnvironmentProfile is the acquisition strategy input for one request.
type EnvironmentProfile struct {
	Class     ProfileClass
	Markers   []string
	RemoteURL string
}

// ParseProfileClass parses a profile name.
func ParseProfileClass(value string) (ProfileClass, bool) {
	switch ProfileClass(strings.ToLower(strings.TrimSpace(value))) {
	case ProfileLocal:
		return ProfileLocal, true
	case ProfileConstrained:
		return ProfileConstrained, true
	case ProfileRemote:
		return ProfileRemote, true
	default:
		return "", false
	}
}

// ProfileSource resolves the environment profile. The pipeline calls it once
// per request and never caches the result.
type ProfileSource interface {
	Profile() EnvironmentProfile
}

// ProfileSourceFunc adapts a function to a ProfileSource.
type ProfileSourceFunc func() EnvironmentProfile

func (f ProfileSourceFunc) Profile() EnvironmentProfile {
	if f == nil {
		return EnvironmentProfile{Class: ProfileLocal}
	}
	return f()
}

// StaticProfile always returns the same profile.
type StaticProfile EnvironmentProfile

func (p StaticProfile) Profile() EnvironmentProfile {
	return EnvironmentProfile(p)
}

// EnvProfileSource detects the profile from process environment variables.
type EnvProfileSource struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
	// Override, when set, takes precedence over the environment.
	Override  ProfileClass
	RemoteURL string
}

// Profile implements ProfileSource.
func (s EnvProfileSource) Profile() EnvironmentProfile {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return DetectProfile(lookup, s.Override, s.RemoteURL)
}

// DetectProfile resolves a profile: an explicit override first, then the
// EXPORT_ENGINE_PROFILE variable, then serverless markers. A remote profile is
// never inferred from markers.
func DetectProfile(lookup func(string) (string, bool), override ProfileClass, remoteURL string) EnvironmentProfile {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	if strings.TrimSpace(remoteURL) == "" {
		if value, ok := lookup(RemoteURLEnv); ok {
			remoteURL = strings.TrimSpace(value)
		}
	}

	markers := make([]string, 0, len(ServerlessMarkers))
	for _, key := range ServerlessMarkers {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			markers = append(markers, key)
		}
	}

	class := override
	if class == "" {
		if value, ok := lookup(ProfileOverrideEnv); ok {
			if parsed, ok := ParseProfileClass(value); ok {
				class = parsed
			}
		}
	}
	if class == "" {
		class = ProfileLocal
		if len(markers) > 0 {
			class = ProfileConstrained
		}
	}

	profile := EnvironmentProfile{Class: class, Markers: markers}
	if class == ProfileRemote {
		profile.RemoteURL = remoteURL
	}
	return profile
}

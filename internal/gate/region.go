package gate

import "fmt"

// Routing domains for the account lookup API. Platform codes map onto
// exactly these three; there is no default for unlisted codes.
const (
	RouteAmericas = "americas.api.riotgames.com"
	RouteAsia     = "asia.api.riotgames.com"
	RouteEurope   = "europe.api.riotgames.com"
)

var platformRoutes = map[string]string{
	"na1": RouteAmericas,
	"br1": RouteAmericas,
	"la1": RouteAmericas,
	"la2": RouteAmericas,
	"oc1": RouteAmericas,
	"kr":  RouteAsia,
	"jp1": RouteAsia,
	"euw1": RouteEurope,
	"eun1": RouteEurope,
	"tr1":  RouteEurope,
	"ru":   RouteEurope,
}

// RouteForPlatform resolves the routing domain serving account lookups
// for a platform region code. Unknown codes are a configuration error,
// surfaced at startup validation rather than per cycle.
func RouteForPlatform(platform string) (string, error) {
	route, ok := platformRoutes[platform]
	if !ok {
		return "", fmt.Errorf("unknown platform region code: %q", platform)
	}
	return route, nil
}

// PlatformDomain returns the platform-specific API host used for the
// live-status query.
func PlatformDomain(platform string) string {
	return platform + ".api.riotgames.com"
}

package gate

import "testing"

func TestRouteForPlatformCoversAllCodes(t *testing.T) {
	known := map[string]string{
		"na1": RouteAmericas, "br1": RouteAmericas, "la1": RouteAmericas,
		"la2": RouteAmericas, "oc1": RouteAmericas,
		"kr": RouteAsia, "jp1": RouteAsia,
		"euw1": RouteEurope, "eun1": RouteEurope, "tr1": RouteEurope, "ru": RouteEurope,
	}
	for code, want := range known {
		got, err := RouteForPlatform(code)
		if err != nil {
			t.Fatalf("RouteForPlatform(%q): %v", code, err)
		}
		if got != want {
			t.Fatalf("RouteForPlatform(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestRouteForPlatformReturnsOneOfThreeDomains(t *testing.T) {
	domains := map[string]bool{RouteAmericas: true, RouteAsia: true, RouteEurope: true}
	for code := range platformRoutes {
		route, err := RouteForPlatform(code)
		if err != nil {
			t.Fatalf("RouteForPlatform(%q): %v", code, err)
		}
		if !domains[route] {
			t.Fatalf("RouteForPlatform(%q) = %q, not a known routing domain", code, route)
		}
	}
}

func TestRouteForPlatformUnknownCode(t *testing.T) {
	if _, err := RouteForPlatform("moon1"); err == nil {
		t.Fatal("expected error for unknown region code")
	}
	if _, err := RouteForPlatform(""); err == nil {
		t.Fatal("expected error for empty region code")
	}
}

func TestPlatformDomain(t *testing.T) {
	if got := PlatformDomain("euw1"); got != "euw1.api.riotgames.com" {
		t.Fatalf("PlatformDomain(euw1) = %q", got)
	}
}

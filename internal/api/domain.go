package api

import (
	"os"
	"strings"
)

// EnvDomain overrides the domain for every API.
const EnvDomain = "ECOSYSTEMS_DOMAIN"

// EnvLookup matches os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// APIDomainEnv returns the per-API override variable, e.g.
// "test_api" -> "ECOSYSTEMS_TEST_API_DOMAIN".
func APIDomainEnv(apiName string) string {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(apiName), "-", "_"))
	return "ECOSYSTEMS_" + name + "_DOMAIN"
}

// DomainToBaseURL turns a user-supplied domain into a base URL. Values with a
// scheme are used verbatim; bare hosts become https://<host>/api/v1.
func DomainToBaseURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain + "/api/v1"
}

// ResolveBaseURL applies the precedence, highest first: the per-API
// environment variable, ECOSYSTEMS_DOMAIN, the call-time domain, then fallback.
func ResolveBaseURL(apiName, domain, fallback string, lookup EnvLookup) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range []string{APIDomainEnv(apiName), EnvDomain} {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return DomainToBaseURL(v)
		}
	}
	if u := DomainToBaseURL(domain); u != "" {
		return u
	}
	return fallback
}

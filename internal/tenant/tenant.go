package tenant

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidTenantName = errors.New("invalid tenant name")

// a tenant name becomes a database, schema or file name
var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]{0,62}$`)

// Resolve returns the override list when it names at least one tenant,
// otherwise the configured list. Neither present yields an empty list.
func Resolve(override string, configured []string) []string {
	if fromOverride := Split(override); len(fromOverride) > 0 {
		return fromOverride
	}

	return clean(configured)
}

// Split breaks a comma separated list, blank segments are dropped
func Split(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	return clean(strings.Split(list, ","))
}

func Validate(tenants []string) error {
	for _, t := range tenants {
		if !nameRegexp.MatchString(t) {
			return errors.Wrapf(ErrInvalidTenantName, "[%s]", t)
		}
	}

	return nil
}

func clean(tenants []string) []string {
	result := make([]string, 0, len(tenants))
	for _, t := range tenants {
		if t = strings.TrimSpace(t); t != "" {
			result = append(result, t)
		}
	}

	return result
}

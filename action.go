package tenants

import (
	"strconv"
	"strings"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
)

type ActionConfigurator func(a *Action)

type Action struct {
	steps    int
	versions []migration.Version
	tenants  string
}

func WithSteps(steps int) ActionConfigurator {
	return func(a *Action) {
		a.steps = steps
	}
}

func WithVersions(versions ...migration.Version) ActionConfigurator {
	return func(a *Action) {
		a.versions = versions
	}
}

// OnTenants overrides the configured tenants with a comma separated list
func OnTenants(list string) ActionConfigurator {
	return func(a *Action) {
		a.tenants = list
	}
}

func newAction(cfs []ActionConfigurator) *Action {
	act := new(Action)
	for _, f := range cfs {
		f(act)
	}

	return act
}

// CreateConfigurators turns raw DB, STEP and VERSION inputs into configurators
func CreateConfigurators(tenants, step string, versionStrings []string) ([]ActionConfigurator, error) {
	var configurators []ActionConfigurator

	if strings.TrimSpace(tenants) != "" {
		configurators = append(configurators, OnTenants(tenants))
	}

	if step = strings.TrimSpace(step); step != "" {
		steps, err := strconv.Atoi(step)
		if err != nil || steps < 1 {
			return nil, configuration(errors.Wrapf(ErrInvalidStep, "got [%s]", step))
		}

		configurators = append(configurators, WithSteps(steps))
	}

	if len(versionStrings) > 0 {
		var versions []migration.Version
		for _, s := range versionStrings {
			if strings.TrimSpace(s) == "" {
				continue
			}

			v, err := migration.VersionFromString(s)
			if err != nil {
				return nil, configuration(err)
			}

			versions = append(versions, v)
		}

		if len(versions) > 0 {
			configurators = append(configurators, WithVersions(versions...))
		}
	}

	return configurators, nil
}

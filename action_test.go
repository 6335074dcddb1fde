package tenants

import (
	"testing"

	"github.com/denismitr/tenants/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_createConfigurators(t *testing.T) {
	tt := []struct {
		name                  string
		expectedConfigurators int
		tenants               string
		step                  string
		steps                 int
		versions              []string
		expectedVersions      []uint64
	}{
		{
			name:                  "zero values",
			expectedConfigurators: 0,
		},
		{
			name:                  "steps and versions",
			expectedConfigurators: 2,
			step:                  "3",
			steps:                 3,
			versions:              []string{"1234567890", "1234567899"},
			expectedVersions:      []uint64{1234567890, 1234567899},
		},
		{
			name:                  "only versions",
			expectedConfigurators: 1,
			versions:              []string{"1234567890"},
			expectedVersions:      []uint64{1234567890},
		},
		{
			name:                  "blank version is ignored",
			expectedConfigurators: 0,
			versions:              []string{" "},
		},
		{
			name:                  "tenants and steps",
			expectedConfigurators: 2,
			tenants:               "acme,beta",
			step:                  " 4 ",
			steps:                 4,
		},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			configurators, err := CreateConfigurators(tc.tenants, tc.step, tc.versions)
			require.NoError(t, err)
			assert.Len(t, configurators, tc.expectedConfigurators)

			a := newAction(configurators)

			assert.Equal(t, tc.steps, a.steps)
			assert.Equal(t, tc.tenants, a.tenants)
			require.Len(t, a.versions, len(tc.expectedVersions))

			for i := range tc.expectedVersions {
				assert.Equal(t, tc.expectedVersions[i], a.versions[i].Value)
			}
		})
	}
}

func Test_createConfigurators_InvalidInput(t *testing.T) {
	for _, step := range []string{"0", "-1", "two"} {
		_, err := CreateConfigurators("", step, nil)
		assert.True(t, errors.Is(err, ErrInvalidStep), step)
		assert.True(t, IsConfigurationError(err), step)
	}

	_, err := CreateConfigurators("", "", []string{"v1"})
	assert.True(t, errors.Is(err, migration.ErrInvalidVersion))
	assert.True(t, IsConfigurationError(err))
}

func Test_action(t *testing.T) {
	t.Parallel()

	a := newAction([]ActionConfigurator{
		WithSteps(3),
		WithVersions(migration.Version{Value: 1}, migration.Version{Value: 2}),
		OnTenants("acme"),
	})

	assert.Equal(t, 3, a.steps)
	require.Len(t, a.versions, 2)
	assert.Equal(t, uint64(1), a.versions[0].Value)
	assert.Equal(t, uint64(2), a.versions[1].Value)
	assert.Equal(t, "acme", a.tenants)
}

package versions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

type failingFeedVersion struct{}

func (failingFeedVersion) Kinds() []string { return []string{"timer"} }

func (failingFeedVersion) UpgradeFeed(context.Context, []byte) ([]byte, error) {
	return nil, errTest
}

func (failingFeedVersion) DowngradeFeed(_ context.Context, f []byte) ([]byte, error) {
	return f, nil
}

func TestDeploy(t *testing.T) {
	t.Parallel()
	m := manager{}
	_, err := m.Deploy(context.Background(), []byte(`{}`), UseLatestVersion)
	assert.ErrorIs(t, err, errNoVersions)

	m.registerVersion(0, "not a version")
	_, err = m.Deploy(context.Background(), []byte(`{}`), UseLatestVersion)
	require.ErrorIs(t, err, errVersionIncompatible)

	m = manager{}
	m.registerVersion(1, &Version1{})
	require.ErrorIs(t, m.errors, errVersionSequence)

	m = manager{}
	m.registerVersion(0, &Version0{})
	m.registerVersion(1, &Version1{})

	_, err = m.Deploy(context.Background(), []byte(`{"version":"one"}`), UseLatestVersion)
	assert.ErrorIs(t, err, errGettingField)

	_, err = m.Deploy(context.Background(), []byte(`{"version":-2}`), UseLatestVersion)
	assert.ErrorIs(t, err, errConfigVersionNeg)

	_, err = m.Deploy(context.Background(), []byte(`{"version":9}`), UseLatestVersion)
	assert.ErrorIs(t, err, errConfigVersionAhead)

	_, err = m.Deploy(context.Background(), []byte(`{"version":0}`), 5)
	assert.ErrorIs(t, err, errConfigVersionAhead)

	j, err := m.Deploy(context.Background(), []byte(`{"strategy":{"name":"twap"}}`), UseLatestVersion)
	require.NoError(t, err)
	v, err := jsonparser.GetInt(j, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	name, err := jsonparser.GetString(j, "strategies", "[0]", "name")
	require.NoError(t, err)
	assert.Equal(t, "twap", name)

	again, err := m.Deploy(context.Background(), j, UseLatestVersion)
	require.NoError(t, err)
	assert.Equal(t, string(j), string(again), "deploying the same version must not change the config")

	down, err := m.Deploy(context.Background(), j, 0)
	require.NoError(t, err)
	name, err = jsonparser.GetString(down, "strategy", "name")
	require.NoError(t, err, "downgrade must restore the single strategy object")
	assert.Equal(t, "twap", name)
}

func TestFeedDeploy(t *testing.T) {
	t.Parallel()
	m := manager{}
	m.registerVersion(0, &Version0{})
	m.registerVersion(1, failingFeedVersion{})
	_, err := m.Deploy(context.Background(), []byte(`{"version":0,"feeds":[{"kind":"timer"}]}`), UseLatestVersion)
	require.ErrorIs(t, err, errApplyingVersion)
	assert.ErrorIs(t, err, errTest)

	_, err = m.Deploy(context.Background(), []byte(`{"version":0,"feeds":[{"name":"nokind"}]}`), UseLatestVersion)
	assert.ErrorIs(t, err, errGettingField)

	j, err := m.Deploy(context.Background(), []byte(`{"version":0,"feeds":[{"kind":"database"}]}`), UseLatestVersion)
	require.NoError(t, err, "feeds of other kinds must be left alone")
	assert.NotContains(t, string(j), "drives-fills")
}

func TestVersion1(t *testing.T) {
	t.Parallel()
	v := &Version1{}
	in := []byte(`{"nickname":"x"}`)
	out, err := v.UpgradeConfig(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out), "configs without a strategy object must not change")

	_, err = v.UpgradeConfig(context.Background(), []byte(`{"strategy":{"name":"a"},"strategies":[]}`))
	assert.Error(t, err)

	_, err = v.DowngradeConfig(context.Background(), []byte(`{"strategies":[{"name":"a"},{"name":"b"}]}`))
	assert.Error(t, err, "several strategies cannot be downgraded")
}

func TestVersion2(t *testing.T) {
	t.Parallel()
	v := &Version2{}
	out, err := v.UpgradeFeed(context.Background(), []byte(`{"kind":"database","close-only":true}`))
	require.NoError(t, err)
	mode, err := jsonparser.GetString(out, "bar-conversion")
	require.NoError(t, err)
	assert.Equal(t, "close", mode)
	drives, err := jsonparser.GetBoolean(out, "drives-fills")
	require.NoError(t, err)
	assert.True(t, drives)
	_, err = jsonparser.GetBoolean(out, "close-only")
	assert.ErrorIs(t, err, jsonparser.KeyPathNotFoundError)

	out, err = v.UpgradeFeed(context.Background(), []byte(`{"kind":"websocket","drives-fills":false}`))
	require.NoError(t, err)
	drives, err = jsonparser.GetBoolean(out, "drives-fills")
	require.NoError(t, err)
	assert.False(t, drives, "an explicit drives-fills must be kept")

	out, err = v.DowngradeFeed(context.Background(), []byte(`{"kind":"database","bar-conversion":"close"}`))
	require.NoError(t, err)
	closeOnly, err := jsonparser.GetBoolean(out, "close-only")
	require.NoError(t, err)
	assert.True(t, closeOnly)
}

func TestManagerLatest(t *testing.T) {
	t.Parallel()
	latest, err := Manager.Latest()
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
	require.NoError(t, Manager.errors)
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in, key, want string
	}{
		{`{"a":1,"b":"x\"y"}`, "b", `{"a":1}`},
		{`{"a":1,"b":[1,2]}`, "a", `{"b":[1,2]}`},
		{"{\n  \"a\": {\"c\": null},\n  \"b\": true\n}", "b", `{"a":{"c": null}}`},
		{`{"a":1}`, "a", `{}`},
		{`{"a":1,"b":"x\"y"}`, "missing", `{"a":1,"b":"x\"y"}`},
	} {
		out, err := deleteKey([]byte(tc.in), tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(out))
		assert.True(t, json.Valid(out), "output must be valid json")
	}
	_, err := deleteKey([]byte(`[1,2]`), "a")
	assert.ErrorIs(t, err, errSettingField)
}

func TestDeployDowngradeFromLatest(t *testing.T) {
	t.Parallel()
	in := []byte(`{
  "nickname": "legacy",
  "feeds": [
    {"name": "candles", "kind": "database", "close-only": true}
  ],
  "strategy": {"name": "buyandhold"}
}`)
	up, err := Manager.Deploy(context.Background(), in, UseLatestVersion)
	require.NoError(t, err)
	require.True(t, json.Valid(up), "upgraded config must be valid json: %s", up)
	mode, err := jsonparser.GetString(up, "feeds", "[0]", "bar-conversion")
	require.NoError(t, err)
	assert.Equal(t, "close", mode)

	down, err := Manager.Deploy(context.Background(), up, 0)
	require.NoError(t, err)
	require.True(t, json.Valid(down), "downgraded config must be valid json: %s", down)
	v, err := jsonparser.GetInt(down, "version")
	require.NoError(t, err)
	assert.Zero(t, v)
	closeOnly, err := jsonparser.GetBoolean(down, "feeds", "[0]", "close-only")
	require.NoError(t, err)
	assert.True(t, closeOnly)
	name, err := jsonparser.GetString(down, "strategy", "name")
	require.NoError(t, err)
	assert.Equal(t, "buyandhold", name)
}

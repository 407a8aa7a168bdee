/*
versions handles config upgrades and downgrades

  - Versions must not rely upon type definitions in the config package. Each version localises the JSON shape it edits

  - Versions must upgrade to the next version. Do not change a released version, add a new one

  - Versions are registered in order in init
*/
package versions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/tradeloop/tradeloop/log"
)

var (
	errRegisteringVersion  = errors.New("error registering config version")
	errVersionIncompatible = errors.New("version does not implement ConfigVersion or FeedVersion")
	errVersionSequence     = errors.New("version registered out of sequence")
	errModifyingFeed       = errors.New("error modifying feed config")
	errNoVersions          = errors.New("error retrieving latest config version: no config versions are registered")
	errApplyingVersion     = errors.New("error applying version")
	errGettingField        = errors.New("error getting field")
	errSettingField        = errors.New("error setting field")
	errConfigVersionAhead  = errors.New("config version is ahead of the latest registered version")
	errConfigVersionNeg    = errors.New("config version cannot be negative")
)

// UseLatestVersion deploys to the highest registered version
const UseLatestVersion = -1

// ConfigVersion is a version that affects the general configuration
type ConfigVersion interface {
	UpgradeConfig(context.Context, []byte) ([]byte, error)
	DowngradeConfig(context.Context, []byte) ([]byte, error)
}

// FeedVersion is a version that affects specific feed configurations
type FeedVersion interface {
	Kinds() []string // Use `*` for all feed kinds
	UpgradeFeed(context.Context, []byte) ([]byte, error)
	DowngradeFeed(context.Context, []byte) ([]byte, error)
}

type manager struct {
	m        sync.RWMutex
	versions []any
	errors   error
}

// Manager is a public instance of the config version manager
var Manager = &manager{}

func init() {
	Manager.registerVersion(0, &Version0{})
	Manager.registerVersion(1, &Version1{})
	Manager.registerVersion(2, &Version2{})
}

// Latest returns the highest registered version
func (m *manager) Latest() (int, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if len(m.versions) == 0 {
		return 0, errNoVersions
	}
	return len(m.versions) - 1, nil
}

// Deploy upgrades or downgrades the config to the target version
func (m *manager) Deploy(ctx context.Context, j []byte, target int) ([]byte, error) {
	if m.errors != nil {
		return j, m.errors
	}
	latest, err := m.Latest()
	if err != nil {
		return j, err
	}
	if target == UseLatestVersion {
		target = latest
	}
	if target < 0 || target > latest {
		return j, fmt.Errorf("%w: target %d", errConfigVersionAhead, target)
	}
	m.m.RLock()
	defer m.m.RUnlock()

	current64, err := jsonparser.GetInt(j, "version")
	current := int(current64)
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		current = -1
	case err != nil:
		return j, fmt.Errorf("%w `version`: %w", errGettingField, err)
	case current < 0:
		return j, fmt.Errorf("%w: %d", errConfigVersionNeg, current)
	case current > latest:
		return j, fmt.Errorf("%w: %d", errConfigVersionAhead, current)
	case target == current:
		return j, nil
	}

	for current != target {
		var (
			next         int
			action       string
			patch        any
			configMethod func(ConfigVersion, context.Context, []byte) ([]byte, error)
			feedMethod   func(FeedVersion, context.Context, []byte) ([]byte, error)
		)
		if target > current {
			next = current + 1
			action = "upgrade"
			configMethod = ConfigVersion.UpgradeConfig
			feedMethod = FeedVersion.UpgradeFeed
			patch = m.versions[next]
		} else {
			next = current - 1
			action = "downgrade"
			configMethod = ConfigVersion.DowngradeConfig
			feedMethod = FeedVersion.DowngradeFeed
			patch = m.versions[current]
		}
		log.Infof(log.ConfigMgr, "Running %s to config version %v", action, next)

		if cPatch, ok := patch.(ConfigVersion); ok {
			if j, err = configMethod(cPatch, ctx, j); err != nil {
				return j, fmt.Errorf("%w %s to %v: %w", errApplyingVersion, action, next, err)
			}
		}
		if fPatch, ok := patch.(FeedVersion); ok {
			if j, err = feedDeploy(ctx, fPatch, feedMethod, j); err != nil {
				return j, fmt.Errorf("%w %s to %v: %w", errApplyingVersion, action, next, err)
			}
		}
		current = next
		if j, err = jsonparser.Set(j, []byte(strconv.Itoa(current)), "version"); err != nil {
			return j, fmt.Errorf("%w `version` during %s to %v: %w", errSettingField, action, next, err)
		}
	}
	return j, nil
}

func feedDeploy(ctx context.Context, patch FeedVersion, method func(FeedVersion, context.Context, []byte) ([]byte, error), j []byte) ([]byte, error) {
	var errs error
	wanted := patch.Kinds()
	var i int
	eFunc := func(feedOrig []byte, _ jsonparser.ValueType, _ int, _ error) {
		defer func() { i++ }()
		kind, err := jsonparser.GetString(feedOrig, "kind")
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%w: %w `kind`: %w", errModifyingFeed, errGettingField, err))
			return
		}
		for _, want := range wanted {
			if want != "*" && want != kind {
				continue
			}
			feedNew, err := method(patch, ctx, feedOrig)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%w: %w", errModifyingFeed, err))
				continue
			}
			if !bytes.Equal(feedNew, feedOrig) {
				if j, err = jsonparser.Set(j, feedNew, "feeds", "["+strconv.Itoa(i)+"]"); err != nil {
					errs = errors.Join(errs, fmt.Errorf("%w: %w `feeds.[%d]`: %w", errModifyingFeed, errSettingField, i, err))
				}
			}
			break
		}
	}
	v, dataType, _, err := jsonparser.Get(j, "feeds")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError), dataType != jsonparser.Array:
		return j, nil
	case err != nil:
		return j, fmt.Errorf("%w: %w `feeds`: %w", errModifyingFeed, errGettingField, err)
	}
	if _, err := jsonparser.ArrayEach(bytes.Clone(v), eFunc); err != nil {
		return j, err
	}
	return j, errs
}

// registerVersion adds a version to the registry. Versions must be added
// sequentially without gaps. Errors are kept for reporting on Deploy
func (m *manager) registerVersion(ver int, v any) {
	m.m.Lock()
	defer m.m.Unlock()
	switch v.(type) {
	case FeedVersion, ConfigVersion:
	default:
		m.errors = errors.Join(m.errors, fmt.Errorf("%w: %w %v", errRegisteringVersion, errVersionIncompatible, ver))
		return
	}
	if len(m.versions) != ver {
		m.errors = errors.Join(m.errors, fmt.Errorf("%w: %w %v", errRegisteringVersion, errVersionSequence, ver))
		return
	}
	m.versions = append(m.versions, v)
}

// deleteKey rebuilds the object j without key. jsonparser.Delete leaves a
// dangling comma when key is the last member
func deleteKey(j []byte, key string) ([]byte, error) {
	out := make([]byte, 0, len(j))
	out = append(out, '{')
	err := jsonparser.ObjectEach(j, func(k, v []byte, dataType jsonparser.ValueType, _ int) error {
		if string(k) == key {
			return nil
		}
		if len(out) > 1 {
			out = append(out, ',')
		}
		name, err := json.Marshal(string(k))
		if err != nil {
			return err
		}
		out = append(out, name...)
		out = append(out, ':')
		if dataType == jsonparser.String {
			out = append(out, '"')
			out = append(out, v...)
			out = append(out, '"')
			return nil
		}
		out = append(out, v...)
		return nil
	})
	if err != nil {
		return j, fmt.Errorf("%w `%s`: %w", errSettingField, key, err)
	}
	return append(out, '}'), nil
}

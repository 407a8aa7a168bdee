package versions

import (
	"context"
	"errors"

	"github.com/buger/jsonparser"
)

// Version1 moves the single `strategy` object into the `strategies` list
type Version1 struct{}

// UpgradeConfig wraps a legacy `strategy` object into `strategies`
func (v *Version1) UpgradeConfig(_ context.Context, j []byte) ([]byte, error) {
	s, dataType, _, err := jsonparser.Get(j, "strategy")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		return j, nil
	case err != nil:
		return j, err
	case dataType != jsonparser.Object:
		return deleteKey(j, "strategy")
	}
	if _, _, _, err = jsonparser.Get(j, "strategies"); err == nil {
		return j, errors.New("config has both `strategy` and `strategies`")
	}
	list := make([]byte, 0, len(s)+2)
	list = append(list, '[')
	list = append(list, s...)
	list = append(list, ']')
	if j, err = deleteKey(j, "strategy"); err != nil {
		return j, err
	}
	return jsonparser.Set(j, list, "strategies")
}

// DowngradeConfig moves a single entry of `strategies` back to `strategy`
func (v *Version1) DowngradeConfig(_ context.Context, j []byte) ([]byte, error) {
	var (
		first []byte
		count int
	)
	_, err := jsonparser.ArrayEach(j, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		if count == 0 {
			first = value
		}
		count++
	}, "strategies")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		return j, nil
	case err != nil:
		return j, err
	case count != 1:
		return j, errors.New("only a single strategy can be downgraded")
	}
	if j, err = deleteKey(j, "strategies"); err != nil {
		return j, err
	}
	return jsonparser.Set(j, first, "strategy")
}

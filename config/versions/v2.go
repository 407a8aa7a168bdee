package versions

import (
	"context"
	"errors"

	"github.com/buger/jsonparser"
)

// Version2 replaces the feed `close-only` flag with `bar-conversion` and
// makes market data feeds drive fills unless they say otherwise
type Version2 struct{}

// Kinds returns the feed kinds carrying bars or market data
func (v *Version2) Kinds() []string { return []string{"database", "websocket"} }

// UpgradeFeed converts `close-only` and defaults `drives-fills` to true
func (v *Version2) UpgradeFeed(_ context.Context, f []byte) ([]byte, error) {
	closeOnly, err := jsonparser.GetBoolean(f, "close-only")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
	case err != nil:
		return f, err
	default:
		mode := `"ohlc"`
		if closeOnly {
			mode = `"close"`
		}
		if f, err = deleteKey(f, "close-only"); err != nil {
			return f, err
		}
		if f, err = jsonparser.Set(f, []byte(mode), "bar-conversion"); err != nil {
			return f, err
		}
	}
	if _, err = jsonparser.GetBoolean(f, "drives-fills"); errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return jsonparser.Set(f, []byte(`true`), "drives-fills")
	}
	return f, nil
}

// DowngradeFeed restores `close-only` from `bar-conversion`
func (v *Version2) DowngradeFeed(_ context.Context, f []byte) ([]byte, error) {
	mode, err := jsonparser.GetString(f, "bar-conversion")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		return f, nil
	case err != nil:
		return f, err
	}
	closeOnly := []byte(`false`)
	if mode == "close" {
		closeOnly = []byte(`true`)
	}
	if f, err = deleteKey(f, "bar-conversion"); err != nil {
		return f, err
	}
	return jsonparser.Set(f, closeOnly, "close-only")
}

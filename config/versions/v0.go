package versions

import "context"

// Version0 is the baseline; configs without a version field are treated as
// the version before it
type Version0 struct{}

// UpgradeConfig does nothing
func (v *Version0) UpgradeConfig(_ context.Context, j []byte) ([]byte, error) {
	return j, nil
}

// DowngradeConfig does nothing
func (v *Version0) DowngradeConfig(_ context.Context, j []byte) ([]byte, error) {
	return j, nil
}

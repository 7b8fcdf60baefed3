package metrics

import "errors"

// ErrRegister is returned by Configure when the options produce metric
// descriptors the registry rejects.
var ErrRegister = errors.New("metrics registration failed")

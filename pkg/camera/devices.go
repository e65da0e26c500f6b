package camera

import (
	"errors"
	"fmt"
)

// Devices lists the devices every compiled-in backend can see, in backend
// priority order. A backend that fails to enumerate is skipped unless all
// of them fail.
func Devices() ([]Info, error) {
	all := []Info{}
	var errs []error
	for _, b := range backends {
		infos, err := b.list()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.scheme, err))
			continue
		}
		all = append(all, infos...)
	}
	if len(errs) > 0 && len(errs) == len(backends) {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		logger(options{}).Warn("device enumeration failed", "error", err)
	}
	return all, nil
}

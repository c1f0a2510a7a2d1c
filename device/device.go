// Package device runs operator kernels through OCCA on whatever backend the
// host provides.
package device

import (
	"fmt"
	"strings"

	"github.com/notargets/gocca"
	"github.com/sirupsen/logrus"
)

// Auto tries the parallel backends before falling back to Serial
const Auto = "auto"

var autoBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// backends returns the OCCA property strings to try, in order, for mode
func backends(mode string) []string {
	switch strings.ToLower(mode) {
	case "", Auto:
		return autoBackends
	case "serial":
		return []string{`{"mode": "Serial"}`}
	case "cuda":
		return []string{`{"mode": "CUDA", "device_id": 0}`, `{"mode": "Serial"}`}
	default:
		return []string{fmt.Sprintf(`{"mode": %q}`, mode), `{"mode": "Serial"}`}
	}
}

// NewDevice creates a device for mode ("auto", "OpenMP", "CUDA", "Serial"),
// falling back to Serial when the requested backend is unavailable
func NewDevice(mode string, log logrus.FieldLogger) (*gocca.OCCADevice, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var errs []string
	for _, props := range backends(mode) {
		dev, err := gocca.NewDevice(props)
		if err == nil {
			log.WithFields(logrus.Fields{"requested": mode, "mode": dev.Mode()}).Info("created device")
			return dev, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", props, err))
	}
	return nil, fmt.Errorf("failed to create any device for mode %q: %s", mode, strings.Join(errs, "; "))
}

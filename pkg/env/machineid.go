package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine,
// falling back to the host name.
func MachineID() string {
	id, err := machineid.ID()
	if err == nil {
		return id
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, herr := os.Hostname(); herr == nil {
		return host
	}
	return "unknown"
}

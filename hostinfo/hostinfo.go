// Package hostinfo describes the minimal facts a running host exposes
// about itself to the plugin subsystem: its own version and a classpath
// marker string naming the host. Loading this from a
// configuration file is out of scope here; callers build a Descriptor
// however their bootstrap wants to and pass it in.
package hostinfo

import "github.com/AerafalDev/Qosmos/plugin"

// Descriptor is the value version validation checks a manifest's
// serverVersion range against.
type Descriptor struct {
	Version   plugin.Semver
	Classpath string
}

// New builds a Descriptor from a raw version string. It panics on an
// invalid version since host version is a boot-time invariant, not
// user input.
func New(version, classpath string) Descriptor {
	v, err := plugin.ParseSemver(version)
	if err != nil {
		panic("hostinfo: invalid host version " + version + ": " + err.Error())
	}
	return Descriptor{Version: v, Classpath: classpath}
}

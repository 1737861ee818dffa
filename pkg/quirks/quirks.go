// Package quirks decides, per machine model, which optional control
// surfaces exist. Unknown machines get none.
package quirks

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ModelKey identifies a machine by its DMI vendor and product name.
type ModelKey struct {
	Vendor  string `yaml:"vendor"`
	Product string `yaml:"product"`
}

func (k ModelKey) String() string {
	return fmt.Sprintf("%s %s", k.Vendor, k.Product)
}

// Capabilities lists the optional subsystems present on a machine.
type Capabilities struct {
	SystemControlMode bool `yaml:"system_control_mode"`
	UsbChargeMode     bool `yaml:"usb_charge_mode"`
}

type Entry struct {
	Ident        string       `yaml:"ident"`
	Key          ModelKey     `yaml:"match"`
	Capabilities Capabilities `yaml:"capabilities"`
}

var builtin = []Entry{
	{
		Ident: "Acer Swift SFG14-73",
		Key:   ModelKey{Vendor: "Acer", Product: "Swift SFG14-73"},
		Capabilities: Capabilities{
			SystemControlMode: true,
			UsbChargeMode:     true,
		},
	},
}

// Registry is a static model table.
type Registry struct {
	entries []Entry
}

// NewRegistry returns the built-in table. Extra entries take precedence
// over built-in ones with the same key.
func NewRegistry(extra ...Entry) *Registry {
	entries := make([]Entry, 0, len(extra)+len(builtin))
	entries = append(entries, extra...)
	entries = append(entries, builtin...)
	return &Registry{entries: entries}
}

// Lookup returns the entry matching key exactly
func (r *Registry) Lookup(key ModelKey) (Entry, bool) {
	for _, e := range r.entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Resolve returns the capabilities of key, all false when the model is
// not in the table.
func (r *Registry) Resolve(key ModelKey) Capabilities {
	if e, found := r.Lookup(key); found {
		logrus.WithField("component", "quirks").Infof("DMI matched: %s", e.Ident)
		return e.Capabilities
	}
	return Capabilities{}
}

package quirks

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const DefaultDMIDir = "/sys/class/dmi/id"

// ReadDMI builds the model key from the kernel's DMI attributes.
func ReadDMI(dir string) (ModelKey, error) {
	if dir == "" {
		dir = DefaultDMIDir
	}

	vendor, err := readDMIString(filepath.Join(dir, "sys_vendor"))
	if err != nil {
		return ModelKey{}, err
	}
	product, err := readDMIString(filepath.Join(dir, "product_name"))
	if err != nil {
		return ModelKey{}, err
	}

	return ModelKey{Vendor: vendor, Product: product}, nil
}

// SMBIOS strings carry no declared encoding; anything that isn't UTF-8 is
// taken as Windows-1252.
func readDMIString(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WithStack(err)
	}

	if !utf8.Valid(raw) {
		if raw, err = charmap.Windows1252.NewDecoder().Bytes(raw); err != nil {
			return "", errors.WithStack(err)
		}
	}

	return strings.Join(strings.Fields(strings.TrimSpace(string(raw))), " "), nil
}

package wmi

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultCallPath   = "/proc/acpi/call"
	DefaultDevicesDir = "/sys/bus/wmi/devices"
)

// DefaultMethods maps interface GUIDs to the ACPI method that dispatches
// their WMI calls. Machines with a different ACPI layout override these
// through the configuration.
var DefaultMethods = map[string]string{
	BatteryGUID:    `\_SB.PC00.WMID.WMBH`,
	ApgeActionGUID: `\_SB.PC00.WMID.WMBE`,
}

// ACPICall evaluates WMI methods through the acpi_call kernel module. The
// module keeps a single result buffer, so calls are strictly serialised.
type ACPICall struct {
	callPath   string
	devicesDir string
	methods    map[string]string

	sem *semaphore.Weighted
	log *logrus.Entry
}

// NewACPICall returns a transport writing to callPath. Missing entries in
// methods fall back to DefaultMethods.
func NewACPICall(callPath, devicesDir string, methods map[string]string) *ACPICall {
	if callPath == "" {
		callPath = DefaultCallPath
	}
	if devicesDir == "" {
		devicesDir = DefaultDevicesDir
	}

	m := make(map[string]string)
	for guid, path := range DefaultMethods {
		m[strings.ToUpper(guid)] = path
	}
	for guid, path := range methods {
		m[strings.ToUpper(guid)] = path
	}

	return &ACPICall{
		callPath:   callPath,
		devicesDir: devicesDir,
		methods:    m,
		sem:        semaphore.NewWeighted(1),
		log:        logrus.WithField("component", "acpi_call"),
	}
}

// HasInterface looks for the GUID among the WMI devices registered by the
// kernel. Duplicate instances are named "<GUID>-<n>".
func (a *ACPICall) HasInterface(guid string) bool {
	entries, err := os.ReadDir(a.devicesDir)
	if err != nil {
		a.log.Debugf("reading %s: %v", a.devicesDir, err)
		return false
	}

	for _, e := range entries {
		name := e.Name()
		if len(name) >= len(guid) && strings.EqualFold(name[:len(guid)], guid) {
			return true
		}
	}
	return false
}

func (a *ACPICall) Invoke(ctx context.Context, guid string, method uint32, request []byte) (Response, error) {
	path, exists := a.methods[strings.ToUpper(guid)]
	if !exists {
		return Response{}, errors.Wrapf(ErrCallFailed, "no ACPI method configured for %s", guid)
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return Response{}, errors.WithStack(err)
	}
	defer a.sem.Release(1)

	command := fmt.Sprintf("%s 0x0 0x%x b%s", path, method, hex.EncodeToString(request))
	a.log.Debugf("-> %s", command)

	if err := a.write(command); err != nil {
		return Response{}, errors.Wrap(ErrCallFailed, err.Error())
	}

	out, err := os.ReadFile(a.callPath)
	if err != nil {
		return Response{}, errors.Wrap(ErrCallFailed, err.Error())
	}

	result := string(bytes.TrimSpace(bytes.TrimRight(out, "\x00")))
	a.log.Debugf("<- %s", result)

	return parseResult(result)
}

func (a *ACPICall) write(command string) error {
	f, err := os.OpenFile(a.callPath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(command); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseResult decodes the textual object representation printed by
// acpi_call: "0x2a" for integers, "{0x01, 0x02}" for buffers and quoted
// strings, which are handed back as raw buffers.
func parseResult(result string) (Response, error) {
	switch {
	case result == "", result == "not called":
		return Response{}, ErrNoResult

	case strings.HasPrefix(result, "Error:"):
		return Response{}, errors.Wrap(ErrCallFailed, strings.TrimSpace(strings.TrimPrefix(result, "Error:")))

	case strings.HasPrefix(result, "{"):
		if !strings.HasSuffix(result, "}") {
			return Response{}, errors.Wrapf(ErrCallFailed, "truncated buffer %q", result)
		}
		body := strings.TrimSpace(result[1 : len(result)-1])
		data := []byte{}
		if body != "" {
			for _, field := range strings.Split(body, ",") {
				b, err := strconv.ParseUint(strings.TrimSpace(field), 0, 8)
				if err != nil {
					return Response{}, errors.Wrapf(ErrCallFailed, "buffer element %q", field)
				}
				data = append(data, byte(b))
			}
		}
		return Response{Kind: Buffer, Data: data}, nil

	case strings.HasPrefix(result, `"`):
		s, err := strconv.Unquote(result)
		if err != nil {
			s = strings.Trim(result, `"`)
		}
		return Response{Kind: Buffer, Data: []byte(s)}, nil

	case strings.HasPrefix(result, "0x"):
		v, err := strconv.ParseUint(result, 0, 64)
		if err != nil {
			return Response{}, errors.Wrapf(ErrCallFailed, "integer %q", result)
		}
		return Response{Kind: Integer, Value: v}, nil

	default:
		return Response{}, errors.Wrapf(ErrCallFailed, "unrecognised result %q", result)
	}
}

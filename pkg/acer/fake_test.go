package acer

import (
	"sync"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer/acertest"
)

var errRegister = acertest.ErrRegister

func newFakeRegister(mode SystemControlMode) *acertest.Register {
	return acertest.NewRegister(map[int]byte{SystemControlModeOffset: byte(mode)})
}

type recordingHandler struct {
	mu      sync.Mutex
	battery []BatteryStatus
	modes   []SystemControlMode
	usb     []UsbChargeState
}

func (h *recordingHandler) BatteryStatus(s BatteryStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.battery = append(h.battery, s)
}

func (h *recordingHandler) SystemControlMode(m SystemControlMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modes = append(h.modes, m)
}

func (h *recordingHandler) UsbCharge(s UsbChargeState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.usb = append(h.usb, s)
}

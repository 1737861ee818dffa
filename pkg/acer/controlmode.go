package acer

import (
	"fmt"

	"github.com/karloygard/acer-wmi-ext-go/pkg/ec"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SystemControlModeOffset is the EC register holding the fan/performance mode
const SystemControlModeOffset = 0x45

// SystemControlMode is the raw value of the system control mode register.
type SystemControlMode byte

const (
	Balanced    SystemControlMode = 1
	Silent      SystemControlMode = 2
	Performance SystemControlMode = 3
)

func (m SystemControlMode) Valid() bool {
	return m >= Balanced && m <= Performance
}

func (m SystemControlMode) String() string {
	switch m {
	case Balanced:
		return "balanced"
	case Silent:
		return "silent"
	case Performance:
		return "performance"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// ControlModeController reads and writes the system control mode register.
// The mirror is the last value this process read or wrote; another agent
// writing the register directly is not noticed until the next Read.
// Callers serialise access.
type ControlModeController struct {
	register  ec.Register
	supported bool

	initialized bool
	failed      error
	mode        SystemControlMode

	log *logrus.Entry
}

func NewControlModeController(register ec.Register, supported bool) *ControlModeController {
	return &ControlModeController{
		register:  register,
		supported: supported,
		log:       logrus.WithField("component", "control_mode"),
	}
}

func (c *ControlModeController) Supported() bool {
	return c.supported
}

// Initialized reports whether Init has run, successfully or not
func (c *ControlModeController) Initialized() bool {
	return c.initialized
}

// Init reads the register once and optionally applies an initial mode
// (initial < 0 leaves it unchanged). A failed read disables the controller
// for good.
func (c *ControlModeController) Init(initial int) error {
	if !c.supported {
		return ErrUnsupported
	}
	c.initialized = true

	mode, err := c.Read()
	if err != nil {
		c.failed = err
		c.log.Errorf("failed to read system control mode from EC: %v", err)
		return err
	}

	c.log.Infof("system control mode: %d", mode)

	if initial < 0 {
		return nil
	}
	if initial > int(Performance) || !SystemControlMode(initial).Valid() {
		return errors.Wrapf(ErrInvalidArgument, "system control mode %d", initial)
	}

	c.log.Infof("setting system control mode to %d", initial)
	return c.Write(SystemControlMode(initial))
}

// Mode returns the mirrored mode
func (c *ControlModeController) Mode() (SystemControlMode, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	return c.mode, nil
}

// Read loads the mode from the register into the mirror.
func (c *ControlModeController) Read() (SystemControlMode, error) {
	if !c.supported {
		return 0, ErrUnsupported
	}
	if c.failed != nil {
		return 0, errors.Wrap(ErrNoDevice, "system control mode disabled")
	}

	v, err := c.register.Read(SystemControlModeOffset)
	if err != nil {
		return 0, err
	}

	c.mode = SystemControlMode(v)
	return c.mode, nil
}

// Write stores mode to the register. The mirror changes only once the
// write went through.
func (c *ControlModeController) Write(mode SystemControlMode) error {
	if err := c.usable(); err != nil {
		return err
	}
	if !mode.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "system control mode %d", mode)
	}

	if err := c.register.Write(SystemControlModeOffset, byte(mode)); err != nil {
		c.log.Errorf("failed to write system control mode to EC: %v", err)
		return err
	}

	c.mode = mode
	c.log.Infof("system control mode set to %d", mode)

	return nil
}

func (c *ControlModeController) usable() error {
	switch {
	case !c.supported:
		return ErrUnsupported
	case !c.initialized:
		return errors.Wrap(ErrNoDevice, "system control mode not initialised")
	case c.failed != nil:
		return errors.Wrap(ErrNoDevice, "system control mode disabled")
	default:
		return nil
	}
}

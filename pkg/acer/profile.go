package acer

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

// Profile is a power profile as understood by the host's profile framework.
type Profile string

const (
	ProfileLowPower    Profile = "low-power"
	ProfileBalanced    Profile = "balanced"
	ProfilePerformance Profile = "performance"
)

// ProfileHandler is the callback set handed to a profile framework.
type ProfileHandler interface {
	// Probe readies the handler and lists the profiles it can apply
	Probe(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context) (Profile, error)
	Set(ctx context.Context, profile Profile) error
}

// ProfileFramework accepts profile handler registrations.
type ProfileFramework interface {
	Register(ctx context.Context, name string, handler ProfileHandler) error
}

const (
	ProfileName = "acer-wmi-ext"

	registerAttempts = 10
	registerDelay    = 100 * time.Millisecond
	registerMaxDelay = time.Second
)

func ProfileOf(mode SystemControlMode) (Profile, bool) {
	switch mode {
	case Balanced:
		return ProfileBalanced, true
	case Performance:
		return ProfilePerformance, true
	case Silent:
		return ProfileLowPower, true
	default:
		return "", false
	}
}

func ModeOf(profile Profile) (SystemControlMode, bool) {
	switch profile {
	case ProfileBalanced:
		return Balanced, true
	case ProfilePerformance:
		return Performance, true
	case ProfileLowPower:
		return Silent, true
	default:
		return 0, false
	}
}

// backoff doubles the delay per failed attempt up to registerMaxDelay
func (f *Facade) backoff(n uint, err error, config *retry.Config) time.Duration {
	d := retry.BackOffDelay(n, err, config)
	if d > registerMaxDelay {
		d = registerMaxDelay
	}
	return f.wait(d)
}

type profileAdapter struct {
	f *Facade
}

func (p profileAdapter) Probe(ctx context.Context) ([]Profile, error) {
	f := p.f

	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	if !f.mode.Supported() {
		return nil, ErrUnsupported
	}
	if !f.mode.Initialized() {
		if err := f.initControlMode(-1); err != nil {
			return nil, err
		}
	}
	if _, err := f.mode.Mode(); err != nil {
		return nil, err
	}

	return []Profile{ProfileLowPower, ProfileBalanced, ProfilePerformance}, nil
}

func (p profileAdapter) Get(ctx context.Context) (Profile, error) {
	f := p.f

	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	mode, err := f.mode.Mode()
	if err != nil {
		return "", err
	}

	profile, known := ProfileOf(mode)
	if !known {
		return "", errors.Wrapf(ErrUnsupported, "system control mode %s", mode)
	}
	return profile, nil
}

func (p profileAdapter) Set(ctx context.Context, profile Profile) error {
	f := p.f

	mode, known := ModeOf(profile)
	if !known {
		return errors.Wrapf(ErrUnsupported, "platform profile %q", profile)
	}

	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	current, err := f.mode.Mode()
	if err != nil {
		return err
	}
	if current == mode {
		f.log.Infof("platform profile already set to %d, no change needed", mode)
		return nil
	}

	f.log.Infof("setting platform profile to %d", mode)
	if err := f.mode.Write(mode); err != nil {
		return err
	}

	f.handler.SystemControlMode(mode)
	return nil
}

// BindProfile registers the system control mode with a profile framework,
// retrying with exponential backoff. It blocks until registration succeeds
// or every attempt has failed.
func (f *Facade) BindProfile(ctx context.Context, fw ProfileFramework) error {
	if !f.caps.SystemControlMode {
		return ErrUnsupported
	}

	f.log.Info("setting up platform profile support")

	var attempt uint
	err := retry.Do(
		func() error {
			attempt++
			if err := fw.Register(ctx, ProfileName, profileAdapter{f}); err != nil {
				return err
			}
			f.log.Infof("platform profile registered successfully (attempt %d)", attempt)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(registerAttempts),
		retry.Delay(registerDelay),
		retry.MaxDelay(registerMaxDelay),
		retry.DelayType(f.backoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warnf("platform profile registration failed (attempt %d/%d): %v", n+1, registerAttempts, err)
		}),
	)

	return errors.Wrap(err, "registering platform profile")
}

// Package shell provides an interactive prompt for reading and changing
// the firmware modes.
package shell

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
)

type Shell struct {
	facade *acer.Facade
	out    io.Writer
	rl     *readline.Instance
}

func completer() *readline.PrefixCompleter {
	attrs := make([]readline.PrefixCompleterInterface, 0, len(acer.Attributes))
	for _, name := range acer.Attributes {
		attrs = append(attrs, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("get", attrs...),
		readline.PcItem("set", attrs...),
		readline.PcItem("profile",
			readline.PcItem(string(acer.ProfileLowPower)),
			readline.PcItem(string(acer.ProfileBalanced)),
			readline.PcItem(string(acer.ProfilePerformance)),
		),
		readline.PcItem("refresh"),
		readline.PcItem("quit"),
	)
}

func New(f *acer.Facade) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "acer> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create readline")
	}

	return &Shell{facade: f, out: rl.Stdout(), rl: rl}, nil
}

// Stdout returns a writer that keeps log output off the prompt line
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}

		if quit := s.Execute(ctx, line); quit {
			return
		}
	}
}

// Execute runs a single command line, reporting true when the shell
// should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "status", "st":
		s.cmdStatus(ctx)

	case "get", "g":
		s.cmdGet(ctx, args)

	case "set", "s":
		s.cmdSet(ctx, args)

	case "profile", "p":
		s.cmdProfile(ctx, args)

	case "refresh", "r":
		s.cmdRefresh(ctx)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  status               - Show every mode
  get <name>           - Read a mode
  set <name> <value>   - Change a mode (0/1, on/off, 1-3, 10/20/30)
  profile [name]       - Show or change the platform profile
  refresh              - Re-read the firmware state
  help                 - Show this help
  quit                 - Exit

  Modes:
    `+strings.Join(acer.Attributes, ", "))
}

func (s *Shell) printError(err error) {
	fmt.Fprintf(s.out, "Error: %v (errno %d)\n", err, int(acer.Errno(err)))
}

func (s *Shell) cmdStatus(ctx context.Context) {
	caps := s.facade.Capabilities()
	fmt.Fprintf(s.out, "Capabilities: system_control_mode=%t usb_charge_mode=%t\n",
		caps.SystemControlMode, caps.UsbChargeMode)

	for _, name := range acer.Attributes {
		value, err := s.facade.Value(ctx, name)
		if err != nil {
			fmt.Fprintf(s.out, "  %-20s %v\n", name, err)
			continue
		}
		fmt.Fprintf(s.out, "  %-20s %d\n", name, value)
	}
}

func (s *Shell) cmdGet(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: get <name>")
		return
	}

	value, err := s.facade.Value(ctx, args[0])
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%s = %d\n", args[0], value)
}

func (s *Shell) cmdSet(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: set <name> <value>")
		return
	}

	value, err := acer.ParseValue(args[0], args[1])
	if err == nil {
		err = s.facade.SetValue(ctx, args[0], value)
	}
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%s set to %d\n", args[0], value)
}

func (s *Shell) cmdProfile(ctx context.Context, args []string) {
	h := s.facade.ProfileHandler()

	if len(args) == 0 {
		profile, err := h.Get(ctx)
		if err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintf(s.out, "platform profile = %s\n", profile)
		return
	}

	if err := h.Set(ctx, acer.Profile(args[0])); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "platform profile set to %s\n", args[0])
}

func (s *Shell) cmdRefresh(ctx context.Context) {
	if _, err := s.facade.RefreshBattery(ctx); err != nil {
		s.printError(err)
	}
	if s.facade.Capabilities().SystemControlMode {
		if _, err := s.facade.ReadSystemControlMode(); err != nil {
			s.printError(err)
		}
	}
	s.cmdStatus(ctx)
}

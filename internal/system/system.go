package system

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"

	"voicekit/player/internal/proc"
)

var ErrNoAddress = errors.New("no IPv4 address")

// OS performs host-level actions. Power commands go through sudo unless
// disabled for hosts where the service already runs as root.
type OS struct {
	runner  *proc.Runner
	useSudo bool
	log     zerolog.Logger

	interfaces func() ([]net.Addr, error)
}

func New(runner *proc.Runner, useSudo bool, log zerolog.Logger) *OS {
	return &OS{runner: runner, useSudo: useSudo, log: log, interfaces: interfaceAddrs}
}

func (o *OS) Shutdown(ctx context.Context) error {
	o.log.Info().Msg("powering off")
	return o.runner.Run(ctx, o.spec("shutdown", "now"))
}

func (o *OS) Reboot(ctx context.Context) error {
	o.log.Info().Msg("rebooting")
	return o.runner.Run(ctx, o.spec("reboot"))
}

// PrimaryIP returns the first non-loopback IPv4 address of an interface
// that is up.
func (o *OS) PrimaryIP() (string, error) {
	addrs, err := o.interfaces()
	if err != nil {
		return "", err
	}
	ip := pickIPv4(addrs)
	if ip == "" {
		return "", ErrNoAddress
	}
	return ip, nil
}

func (o *OS) spec(name string, args ...string) proc.Spec {
	if o.useSudo {
		return proc.Spec{Name: "sudo", Args: append([]string{"-n", name}, args...)}
	}
	return proc.Spec{Name: name, Args: args}
}

func interfaceAddrs() ([]net.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Addr
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		out = append(out, addrs...)
	}
	return out, nil
}

func pickIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

package engine

import (
	"context"
	"net"

	"go.uber.org/fx"

	"github.com/joshuafuller/svcinfo/internal/errors"
)

// Config is the engine configuration supplied through fx.
type Config struct {
	// IPv6 also joins the IPv6 mDNS group.
	IPv6 bool
	// Interfaces lists interface names to join on. Empty means all.
	Interfaces []string
}

// Module provides a started *Engine. The engine is started on OnStart and
// closed on OnStop.
var Module = fx.Module("engine",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerLifecycle),
)

// ModuleInput is the fx input of ProvideEngine.
type ModuleInput struct {
	fx.In
	Config  *Config  `optional:"true"`
	Options []Option `group:"engine.options"`
}

// ProvideEngine builds an engine from the optional Config followed by every
// Option in the "engine.options" group.
func ProvideEngine(in ModuleInput) (*Engine, error) {
	var opts []Option
	if in.Config != nil {
		opts = append(opts, WithIPv6(in.Config.IPv6))
		if len(in.Config.Interfaces) > 0 {
			ifaces, err := lookupInterfaces(in.Config.Interfaces)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithInterfaces(ifaces))
		}
	}
	opts = append(opts, in.Options...)
	return New(opts...)
}

// AsOption annotates an Option constructor for the "engine.options" group.
func AsOption(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"engine.options"`))
}

func lookupInterfaces(names []string) ([]net.Interface, error) {
	ifaces := make([]net.Interface, 0, len(names))
	for _, name := range names {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, &errors.ValidationError{Field: "interfaces", Value: name, Message: "unknown interface", Err: err}
		}
		ifaces = append(ifaces, *iface)
	}
	return ifaces, nil
}

func registerLifecycle(lc fx.Lifecycle, e *Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return e.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return e.Close()
		},
	})
}

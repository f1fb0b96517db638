package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/joshuafuller/svcinfo/engine"
	"github.com/joshuafuller/svcinfo/internal/logger"
	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/serviceinfo"
)

const lifecycleTimeout = 15 * time.Second

var errNotFound = stderrors.New("service not resolved within timeout")

func newResolveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Resolve one service instance",
		Long: `Resolve one service instance. NAME is either the fully qualified
instance name or the instance label, in which case --type is appended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}

	addResolveFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.Flags())

	return cmd
}

func addResolveFlags(flags *pflag.FlagSet) {
	flags.StringP("type", "t", "", "service type, e.g. _http._tcp.local.")
	flags.Duration("timeout", 3*time.Second, "how long to keep querying")
	flags.Bool("unicast", false, "ask for unicast responses on every query")
	flags.Bool("ipv6", false, "also query on the IPv6 mDNS group")
	flags.String("address", "", "send queries to this address instead of the multicast group")
	flags.Uint16("port", protocol.Port, "destination port used with --address")
	flags.StringSlice("interfaces", nil, "interfaces to join (default all)")
	flags.BoolP("verbose", "v", false, "debug logging")
}

// qualify returns name as a fully qualified instance of serviceType.
func qualify(name, serviceType string) string {
	serviceType = strings.TrimSuffix(serviceType, ".") + "."
	name = strings.TrimSuffix(name, ".")
	if strings.HasSuffix(strings.ToLower(name+"."), "."+strings.ToLower(serviceType)) {
		return name + "."
	}
	return name + "." + serviceType
}

func requestOptions(cfg *Config) []serviceinfo.RequestOption {
	var opts []serviceinfo.RequestOption
	if cfg.Unicast {
		opts = append(opts, serviceinfo.WithQuestionType(serviceinfo.QuestionUnicast))
	}
	if cfg.Address != "" {
		opts = append(opts,
			serviceinfo.WithDestination(netip.MustParseAddr(cfg.Address)),
			serviceinfo.WithDestinationPort(cfg.Port),
		)
	}
	return opts
}

func runResolve(ctx context.Context, cfg *Config, name string, out io.Writer, extra ...fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Verbose {
		for _, subsystem := range []string{"engine", "serviceinfo", "transport"} {
			logger.Logger(subsystem)
			logger.SetLevel(subsystem, slog.LevelDebug)
		}
	}

	serviceType := strings.TrimSuffix(cfg.Type, ".") + "."
	info, err := serviceinfo.New(serviceType, qualify(name, serviceType))
	if err != nil {
		return err
	}

	var eng *engine.Engine
	app := fx.New(
		fx.NopLogger,
		engine.Module,
		fx.Supply(&engine.Config{IPv6: cfg.IPv6, Interfaces: cfg.Interfaces}),
		fx.Options(extra...),
		fx.Populate(&eng),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ok, err := info.Request(ctx, eng, cfg.Timeout, requestOptions(cfg)...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", info.Name(), errNotFound)
	}
	printInfo(out, info)
	return nil
}

func printInfo(w io.Writer, info *serviceinfo.Info) {
	fmt.Fprintf(w, "name:     %s\n", info.Name())
	fmt.Fprintf(w, "host:     %s\n", info.Server())
	if port, ok := info.Port(); ok {
		fmt.Fprintf(w, "port:     %d\n", port)
	}
	fmt.Fprintf(w, "priority: %d\n", info.Priority())
	fmt.Fprintf(w, "weight:   %d\n", info.Weight())
	for _, addr := range info.ParsedScopedAddresses(serviceinfo.All) {
		fmt.Fprintf(w, "address:  %s\n", addr)
	}

	props := info.Properties()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := props[k]; v != nil {
			fmt.Fprintf(w, "txt:      %s=%s\n", k, v)
		} else {
			fmt.Fprintf(w, "txt:      %s\n", k)
		}
	}
}

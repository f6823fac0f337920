// flowgdmp dumps the current flow graph state as a DOT graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"flowgdmp/client"
	"flowgdmp/flowgraph"
	"flowgdmp/loadbalance"
	"flowgdmp/registry"
)

const progName = "flowgdmp"

// Exit codes. 10 and 20 are relied upon by scripts.
const (
	exitOK              = 0
	exitUsage           = 1
	exitNotFound        = 10
	exitNoManager       = 20
	exitTransaction     = 30
	exitRemoteException = 40
)

var defaultLogFormatter = &log.TextFormatter{}

// infoFormatter prints Info() events as the bare message.
type infoFormatter struct{}

func (f *infoFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Level == log.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

type registryFactory func(cfg Config) (registry.Registry, error)

func etcdRegistry(cfg Config) (registry.Registry, error) {
	return registry.NewEtcdRegistry(cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, etcdRegistry))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newRegistry registryFactory) int {
	flags := flag.NewFlagSet(progName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "USAGE: %s [options]\n\n", progName)
		fmt.Fprintf(stderr, "Dump the current flow graph state as a DOT graph.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
	}
	flagConfig := flags.String("config", "", "Path to config file (default $HOME/.config/flowgdmp/config.yml)")
	flagRegistry := flags.String("registry", "", "Comma separated service manager (etcd) endpoints")
	flagService := flags.String("service", "", "Service name to query")
	flagQuiet := flags.Bool("q", false, "Quiet execution")
	flagVerbose := flags.Bool("v", false, "Verbose execution")

	log.SetOutput(stderr)
	log.SetFormatter(new(infoFormatter))
	log.SetLevel(log.InfoLevel)

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if *flagQuiet && *flagVerbose {
		fmt.Fprintf(stderr, "%s: Can't set quiet and verbose flag at the same time\n", progName)
		return exitUsage
	}
	if *flagQuiet {
		log.SetLevel(log.ErrorLevel)
	}
	if *flagVerbose {
		log.SetFormatter(defaultLogFormatter)
		log.SetLevel(log.DebugLevel)
	}

	cfgPath, explicit := *flagConfig, *flagConfig != ""
	if !explicit {
		cfgPath = defaultConfigPath()
	}
	cfg, err := loadConfig(cfgPath, explicit)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", progName, err)
		return exitUsage
	}
	if *flagRegistry != "" {
		cfg.Registry.Endpoints = splitEndpoints(*flagRegistry)
	}
	if *flagService != "" {
		cfg.Service = *flagService
	}

	bal, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", progName, err)
		return exitUsage
	}

	return dump(ctx, cfg, bal, stdout, stderr, newRegistry)
}

// dump performs lookup, interface probe, and the graph state transaction.
func dump(ctx context.Context, cfg Config, bal loadbalance.Balancer, stdout, stderr io.Writer, newRegistry registryFactory) int {
	reg, err := newRegistry(cfg)
	if err != nil {
		log.WithError(err).Debug("registry setup failed")
		fmt.Fprintf(stderr, "%s: Unable to get default service manager!\n", progName)
		return exitNoManager
	}
	sm := client.NewServiceManager(reg, client.WithBalancer(bal))
	defer sm.Close()

	ep, err := sm.CheckService(ctx, cfg.Service)
	if err != nil {
		log.WithError(err).Debug("service lookup failed")
		fmt.Fprintf(stderr, "%s: Unable to get default service manager!\n", progName)
		return exitNoManager
	}

	ifName := client.InterfaceName(ctx, ep)
	if ep == nil || len(ifName) == 0 {
		fmt.Fprintf(stderr, "%s: Service %s does not exist\n", progName, cfg.Service)
		return exitNotFound
	}
	log.WithFields(log.Fields{"service": cfg.Service, "interface": ifName.String()}).Debug("interface verified")

	state, err := flowgraph.NewProxy(ep, ifName).GraphState(ctx)
	if err != nil {
		var remote *client.RemoteException
		if errors.As(err, &remote) {
			fmt.Fprintf(stderr, "%s: remote exception: %v\n", progName, remote)
			return exitRemoteException
		}
		fmt.Fprintf(stderr, "%s: transaction failed: %v\n", progName, err)
		return exitTransaction
	}

	fmt.Fprintln(stdout, state)
	return exitOK
}

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/phamduclong/aerogo/internal/tool/config"
	"github.com/phamduclong/aerogo/pkg/aero"
	"github.com/phamduclong/aerogo/pkg/policy"
)

// App wires the config, logger and client behind the aerotool
// subcommands.
type App struct {
	cfg    *config.Config
	client *aero.Client
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitLogger(&cfg.Logger)

	cp := policy.NewClientPolicy()
	cp.User = cfg.Cluster.User
	cp.Password = cfg.Cluster.Password
	cp.ClusterName = cfg.Cluster.ClusterName
	if cfg.Cluster.ConnectTimeoutMS > 0 {
		cp.Timeout = time.Duration(cfg.Cluster.ConnectTimeoutMS) * time.Millisecond
	}
	if cfg.Cluster.MaxConnsPerNode > 0 {
		cp.MaxConnsPerNode = cfg.Cluster.MaxConnsPerNode
	}
	switch strings.ToLower(cfg.Cluster.AuthMode) {
	case "", "none":
		cp.AuthMode = policy.AuthNone
	case "internal":
		cp.AuthMode = policy.AuthInternal
	case "external":
		cp.AuthMode = policy.AuthExternal
	case "pki":
		cp.AuthMode = policy.AuthPKI
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Cluster.AuthMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cp.Timeout*3)
	defer cancel()
	client, err := aero.NewClient(ctx, cfg.Cluster.Seeds, cp)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if cfg.Cluster.TotalTimeoutMS > 0 {
		client.DefaultPolicy.TotalTimeout = time.Duration(cfg.Cluster.TotalTimeoutMS) * time.Millisecond
		client.DefaultWritePolicy.TotalTimeout = client.DefaultPolicy.TotalTimeout
	}
	return &App{cfg: cfg, client: client}, nil
}

// Run dispatches one subcommand and disconnects.
func (a *App) Run(args []string) error {
	defer a.client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		return fmt.Errorf("usage: aerotool <nodes|info|get|exists|put|delete|scan> [args]")
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "nodes":
		return a.nodes()
	case "info":
		return a.info(ctx, rest)
	case "get":
		return a.get(ctx, rest)
	case "exists":
		return a.exists(ctx, rest)
	case "put":
		return a.put(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "scan":
		return a.scan(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) nodes() error {
	for _, name := range a.client.NodeNames() {
		fmt.Println(name)
	}
	return nil
}

func (a *App) info(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"build", "namespaces", "statistics"}
	}
	all, err := a.client.InfoOnAllNodes(ctx, nil, args...)
	if err != nil {
		return err
	}
	for node, values := range all {
		for cmd, val := range values {
			fmt.Printf("%s\t%s\t%s\n", node, cmd, val)
		}
	}
	return nil
}

func (a *App) get(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: aerotool get <namespace> <set> <key>")
	}
	key, err := aero.NewKey(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	rec, err := a.client.Get(ctx, nil, key)
	if err != nil {
		return err
	}
	printRecord(rec)
	return nil
}

func (a *App) exists(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: aerotool exists <namespace> <set> <key>")
	}
	key, err := aero.NewKey(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	found, err := a.client.Exists(ctx, nil, key)
	if err != nil {
		return err
	}
	fmt.Println(found)
	return nil
}

func (a *App) put(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: aerotool put <namespace> <set> <key> <bin=value>...")
	}
	key, err := aero.NewKey(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	bins := make([]aero.Bin, 0, len(args)-3)
	for _, pair := range args[3:] {
		name, val, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("bad bin %q, want name=value", pair)
		}
		bins = append(bins, aero.NewBin(name, val))
	}
	return a.client.Put(ctx, nil, key, bins...)
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: aerotool delete <namespace> <set> <key>")
	}
	key, err := aero.NewKey(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	existed, err := a.client.Delete(ctx, nil, key)
	if err != nil {
		return err
	}
	if !existed {
		logger.Warnw("record not found", "key", key.String())
	}
	return nil
}

func (a *App) scan(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: aerotool scan <namespace> [set]")
	}
	set := ""
	if len(args) == 2 {
		set = args[1]
	}
	rs, err := a.client.ScanAll(ctx, nil, args[0], set)
	if err != nil {
		return err
	}
	defer rs.Close()

	count := 0
	for res := range rs.Results() {
		if res.Err != nil {
			return res.Err
		}
		printRecord(res.Record)
		count++
	}
	logger.Infow("scan finished", "records", count)
	return nil
}

func printRecord(rec *aero.Record) {
	parts := make([]string, 0, len(rec.Bins))
	for name, v := range rec.Bins {
		parts = append(parts, fmt.Sprintf("%s=%s", name, v))
	}
	fmt.Printf("%s\tgen=%d\t%s\n", rec.Key, rec.Generation, strings.Join(parts, "\t"))
}

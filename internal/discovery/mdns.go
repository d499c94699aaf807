// Package discovery advertises the status server over mDNS so the doorbell
// can be found on the LAN without knowing its address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Service registration constants.
const (
	ServiceType        = "_http._tcp"
	Domain             = "local."
	DefaultInstance    = "doorbell-pi"
	MaxInstanceNameLen = 63
)

// Info describes the advertised status server.
type Info struct {
	Instance string
	Port     int
	Input    string // "gpio" or "flic"
	Version  string
}

// Validate checks the instance name and port.
func (i Info) Validate() error {
	var errs []error
	if i.Instance == "" {
		errs = append(errs, errors.New("instance name is empty"))
	}
	if len(i.Instance) > MaxInstanceNameLen {
		errs = append(errs, fmt.Errorf("instance name longer than %d bytes", MaxInstanceNameLen))
	}
	if i.Port < 1 || i.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", i.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("discovery: %w", errors.Join(errs...))
	}
	return nil
}

// TXT returns the TXT records for info as sorted key=value strings.
func TXT(info Info) []string {
	records := map[string]string{
		"path":    "/",
		"status":  "/index.json",
		"ws":      "/ws",
		"input":   info.Input,
		"version": info.Version,
	}
	txt := make([]string, 0, len(records))
	for k, v := range records {
		if v == "" {
			continue
		}
		txt = append(txt, k+"="+v)
	}
	sort.Strings(txt)
	return txt
}

// PortFromAddr extracts the TCP port from a listen address such as ":80"
// or "0.0.0.0:8080".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("discovery: parse address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("discovery: invalid port %q in %q", p, addr)
	}
	return port, nil
}

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	s, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Advertiser registers the status server with mDNS.
type Advertiser struct {
	iface    string
	logger   *zap.Logger
	register registerFunc
}

// NewAdvertiser creates an Advertiser. An empty iface advertises on all
// multicast interfaces.
func NewAdvertiser(iface string, logger *zap.Logger) *Advertiser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advertiser{iface: iface, logger: logger, register: zeroconfRegister}
}

// Advertise registers info and blocks until ctx is cancelled, then
// withdraws the record.
func (a *Advertiser) Advertise(ctx context.Context, info Info) error {
	if err := info.Validate(); err != nil {
		return err
	}

	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}

	srv, err := a.register(info.Instance, ServiceType, Domain, info.Port, TXT(info), ifaces)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", info.Instance, err)
	}
	a.logger.Info("advertising status server",
		zap.String("instance", info.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", info.Port),
	)

	<-ctx.Done()
	srv.Shutdown()
	a.logger.Debug("mdns record withdrawn", zap.String("instance", info.Instance))
	return nil
}

func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.iface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		return nil, fmt.Errorf("discovery: interface %q: %w", a.iface, err)
	}
	return []net.Interface{*iface}, nil
}

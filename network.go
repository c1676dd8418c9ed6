package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
)

var errNoDefaultRoute = errors.New("default route not found")

// netInterface is one host interface with its first IPv4 address ("" if none).
type netInterface struct {
	Name string
	IPv4 string
}

// interfaceSource answers the two system queries the renderer needs.
type interfaceSource interface {
	DefaultInterface(ctx context.Context) (string, error)
	Interfaces(ctx context.Context) ([]netInterface, error)
}

// systemInterfaces reads the host's routing table and interfaces.
type systemInterfaces struct {
	procRoute string
}

func newSystemInterfaces() *systemInterfaces {
	return &systemInterfaces{procRoute: "/proc/net/route"}
}

// DefaultInterface asks `ip route show default` and falls back to
// /proc/net/route when the ip tool is missing.
func (s *systemInterfaces) DefaultInterface(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ip", "route", "show", "default")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err == nil {
		if name, err := parseIPRouteDefault(out.String()); err == nil {
			return name, nil
		}
	}

	f, err := os.Open(s.procRoute)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", s.procRoute, err)
	}
	defer f.Close()
	return parseProcNetRoute(f)
}

func (s *systemInterfaces) Interfaces(ctx context.Context) ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		entry := netInterface{Name: iface.Name}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
					entry.IPv4 = ipnet.IP.String()
					break
				}
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// parseIPRouteDefault extracts the device from `ip route show default`
// output, e.g. "default via 192.168.1.1 dev eth0 proto dhcp metric 100".
func parseIPRouteDefault(out string) (string, error) {
	fields := strings.Fields(out)
	for i, field := range fields {
		if field == "dev" && (i+1) < len(fields) {
			return fields[i+1], nil
		}
	}
	return "", errNoDefaultRoute
}

// parseProcNetRoute returns the interface of the first 0.0.0.0/0 route.
func parseProcNetRoute(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	// header
	scanner.Scan()
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 {
			continue
		}
		if fields[1] == "00000000" && fields[7] == "00000000" {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errNoDefaultRoute
}

// lookupIPv4 scans ifaces for name. ok is false when there is no match.
func lookupIPv4(ifaces []netInterface, name string) (ip string, ok bool) {
	for _, iface := range ifaces {
		if iface.Name == name {
			return iface.IPv4, true
		}
	}
	return "", false
}

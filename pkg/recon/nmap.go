package recon

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/runner"
)

const nmapTimeout = 2 * time.Minute

// nmap -oX document, reduced to what port extraction needs.
type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Ports     nmapPorts     `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPorts struct {
	Ports []nmapPort `xml:"port"`
}

type nmapPort struct {
	PortID   string      `xml:"portid,attr"`
	Protocol string      `xml:"protocol,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name string `xml:"name,attr"`
}

// runNmap fast-scans host and returns its open ports.
func (r *Recon) runNmap(ctx context.Context, host string) ([]engine.PortInfo, error) {
	res := r.exec.Run(ctx, runner.Task{
		ToolName: "nmap",
		Command:  "nmap",
		Args:     []string{"-F", "-oX", "-", host},
		Timeout:  nmapTimeout,
	})
	if !res.Success {
		return nil, fmt.Errorf("nmap: %s", res.ErrorText)
	}
	return parseNmapXML([]byte(res.RawOutput))
}

func parseNmapXML(data []byte) ([]engine.PortInfo, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty nmap output")
	}
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode nmap xml: %w", err)
	}

	var ports []engine.PortInfo
	for _, host := range run.Hosts {
		var ip string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ip = addr.Addr
				break
			}
		}
		if ip == "" && len(host.Addresses) > 0 {
			ip = host.Addresses[0].Addr
		}

		for _, p := range host.Ports.Ports {
			if p.State.State != "open" {
				continue
			}
			ports = append(ports, engine.PortInfo{
				Host:     ip,
				Port:     p.PortID,
				Protocol: p.Protocol,
				Service:  p.Service.Name,
			})
		}
	}
	return ports, nil
}

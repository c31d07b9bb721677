package scheduler

import (
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// extractOpenPorts scans nmap-shaped stdout for "<port>/<proto> open
// <service>" lines and returns the hosts/services they describe. This is
// deliberately line-oriented string matching, not a generic nmap output
// parser. It reads the same nmap stdout the web-detection follow-up rule
// scans, but records every open port line, not only the web indicators.
func extractOpenPorts(target, stdout string) []model.Host {
	var services []model.Service
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		portProto := strings.SplitN(fields[0], "/", 2)
		if len(portProto) != 2 {
			continue
		}
		port, err := strconv.Atoi(portProto[0])
		if err != nil {
			continue
		}
		if fields[1] != "open" {
			continue
		}
		name := ""
		if len(fields) >= 3 {
			name = fields[2]
		}
		services = append(services, model.Service{
			Port:     port,
			Protocol: portProto[1],
			Name:     name,
		})
	}
	if len(services) == 0 {
		return nil
	}
	return []model.Host{{Address: target, Services: services}}
}

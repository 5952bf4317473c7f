package hostinfo

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	cpuInfoModelPattern  = regexp.MustCompile(`(?m)^model name\s*:\s*(.+)$`)
	lscpuModelPattern    = regexp.MustCompile(`(?m)^Model name:\s*(.+)$`)
	lsbDescPattern       = regexp.MustCompile(`(?m)^Description:\s*(.+)$`)
	chipsetModelPattern  = regexp.MustCompile(`Chipset Model:\s*(.+)`)
	vmProductKeywords    = []string{"vmware", "virtualbox", "kvm", "qemu", "xen", "oracle", "innotek", "bochs", "hyper-v", "microsoft corporation virtual"}
	vmModuleKeywords     = []string{"vboxguest", "vmw_balloon", "xen_"}
	cloudProductKeywords = []string{"ec2", "amazon", "google", "gce", "azure"}
)

var armNames = map[string]string{
	"aarch64": "ARMv8 Processor",
	"arm64":   "ARMv8 Processor",
	"armv8l":  "ARMv8 Processor",
	"armv7l":  "ARMv7 Processor",
	"armv6l":  "ARMv6 Processor",
}

// armCPUName maps an ARM machine architecture to a generic processor name.
func armCPUName(arch string) (string, bool) {
	if name, ok := armNames[arch]; ok {
		return name, true
	}
	if strings.HasPrefix(arch, "arm") {
		return fmt.Sprintf("ARM Processor (%s)", arch), true
	}
	return "", false
}

func parseCPUInfoModel(content string) string {
	return firstMatch(cpuInfoModelPattern, content)
}

func parseLscpuModel(out string) string {
	return firstMatch(lscpuModelPattern, out)
}

func parseLsbDescription(out string) string {
	return firstMatch(lsbDescPattern, out)
}

func parseChipsetModel(out string) string {
	return firstMatch(chipsetModelPattern, out)
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseOSRelease returns PRETTY_NAME from an os-release file, falling back
// to NAME.
func parseOSRelease(content string) string {
	var name string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch key {
		case "PRETTY_NAME":
			if value != "" {
				return value
			}
		case "NAME":
			if name == "" {
				name = value
			}
		}
	}
	return name
}

// parseNvidiaSMI parses the first line of
// `nvidia-smi --query-gpu=name,utilization.gpu --format=csv,noheader,nounits`.
func parseNvidiaSMI(out string) (GPU, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return GPU{}, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}
	usage, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return GPU{}, fmt.Errorf("parse gpu utilization: %w", err)
	}
	return GPU{Name: strings.TrimSpace(fields[0]), UsagePercent: usage}, nil
}

// armBoardGPU infers the integrated GPU from a device-tree model string.
func armBoardGPU(model string) string {
	switch {
	case strings.Contains(model, "RK3399"):
		return "Mali-T860MP4"
	case strings.Contains(model, "RK3588"):
		return "Mali-G610"
	case strings.Contains(model, "Raspberry Pi 4"):
		return "VideoCore VI"
	}
	return ""
}

func containsAny(content string, keywords []string) bool {
	content = strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

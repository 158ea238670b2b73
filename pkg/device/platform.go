package device

import (
	"regexp"
	"strings"
)

// sshMode selects how a command set reaches the device.
type sshMode int

const (
	// modeInteractive allocates a pseudo-TTY and streams commands on stdin.
	modeInteractive sshMode = iota
	// modeSingleShot runs one command as a non-interactive SSH argument.
	// IOS-XR rejects the -tt plus stdin style.
	modeSingleShot
)

type platformKey struct {
	vendor string
	model  string
}

// platform bundles the per-(vendor, model) inventory command set, serial
// parser, and SSH transport mode.
type platform struct {
	commands []string
	parse    func(out string) string
	mode     sshMode
}

var (
	reChassisSN = regexp.MustCompile(`(?is)NAME:\s*"Chassis".*?SN:\s*([A-Z0-9]+)`)
	reRack0SN   = regexp.MustCompile(`(?is)NAME:\s*"Rack 0".*?SN:\s*([A-Z0-9]+)`)
	reSystemSN  = regexp.MustCompile(`(?i)System serial number\s*:\s*([A-Z0-9]+)`)
	reComwareSN = regexp.MustCompile(`(?i)DEVICE_SERIAL_NUMBER\s*:\s*([A-Z0-9]+)`)
)

var platforms = map[platformKey]platform{
	{"cisco", "n9k"}: {
		commands: []string{"terminal length 0", "show inventory", "exit"},
		parse:    parseChassisSN,
		mode:     modeInteractive,
	},
	{"cisco", "c8k"}: {
		commands: []string{"terminal length 0", "show inventory", "show version", "exit"},
		parse:    parseC8KSN,
		mode:     modeInteractive,
	},
	{"cisco", "xrv"}: {
		commands: []string{"show inventory"},
		parse:    parseRack0SN,
		mode:     modeSingleShot,
	},
	{"hp", "5945"}: {
		commands: []string{"screen-length disable", "display device manuinfo", "exit"},
		parse:    parseComwareSN,
		mode:     modeInteractive,
	},
}

// lookupPlatform resolves the command set for a vendor/model pair.
// Comparisons are lower-cased; unknown pairs have no platform.
func lookupPlatform(vendor, model string) (platform, bool) {
	p, ok := platforms[platformKey{strings.ToLower(vendor), strings.ToLower(model)}]
	return p, ok
}

func normalizeSerial(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func firstGroup(re *regexp.Regexp, out string) string {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return normalizeSerial(m[1])
}

// parseChassisSN extracts the SN of the first NAME:"Chassis" inventory block.
func parseChassisSN(out string) string {
	return firstGroup(reChassisSN, out)
}

// parseC8KSN prefers the Chassis block, falling back to show version's
// "System serial number:" line.
func parseC8KSN(out string) string {
	if sn := firstGroup(reChassisSN, out); sn != "" {
		return sn
	}
	return firstGroup(reSystemSN, out)
}

// parseRack0SN extracts the SN of the NAME:"Rack 0" block (XRv chassis).
func parseRack0SN(out string) string {
	return firstGroup(reRack0SN, out)
}

// parseComwareSN extracts DEVICE_SERIAL_NUMBER from display device manuinfo.
func parseComwareSN(out string) string {
	return firstGroup(reComwareSN, out)
}

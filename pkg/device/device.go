// Package device executes host-side I/O against testbed switches: ICMP
// reachability probes, vendor-dispatched SSH command sequences, and
// config-reset reloads.
//
// Every probe spawns a child process; there are no persistent connections.
// The public surface never returns transport errors: failures surface as
// false or an empty serial and are logged at warning level, which keeps the
// inventory engine's state machine free of error plumbing.
package device

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/switchyard-lab/switchyard/pkg/catalog"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Target identifies one device for an adapter call.
type Target struct {
	Vendor string
	Model  string
	Serial string
	MgmtIP string
	Port   int
}

const (
	pingTimeout  = time.Second
	sshTimeout   = 10 * time.Second
	resetTimeout = 3 * time.Second
)

// Older network gear still negotiates ssh-rsa host keys and group14-sha1
// kex, which modern OpenSSH disables by default.
var sshOptions = []string{
	"-o", "StrictHostKeyChecking=no",
	"-o", "UserKnownHostsFile=/dev/null",
	"-o", "HostKeyAlgorithms=+ssh-rsa",
	"-o", "PubkeyAcceptedKeyTypes=+ssh-rsa",
	"-o", "KexAlgorithms=+diffie-hellman-group14-sha1",
}

// Connector is the concrete device I/O adapter.
type Connector struct {
	creds *catalog.Credentials
	run   runner
}

// NewConnector creates an adapter over the given credentials store.
func NewConnector(creds *catalog.Credentials) *Connector {
	return &Connector{creds: creds, run: execRunner{}}
}

// Reachable reports whether the address answers a single ICMP echo within
// one second. Any execution failure counts as unreachable; there are no
// retries.
func (c *Connector) Reachable(ctx context.Context, ip string) bool {
	res := c.run.run(ctx, "", 2*pingTimeout, "ping", "-c", "1", "-W", "1", ip)
	if res.err != nil {
		util.Warnf("ping %s: %v", ip, res.err)
		return false
	}
	return !res.timedOut && res.exitCode == 0
}

// Serial fetches the device's chassis serial over SSH and returns it
// upper-cased and trimmed. It returns "" for unknown vendor/model pairs,
// missing credentials, transport failures, or output the platform parser
// does not recognize; callers treat "" as a mismatch.
func (c *Connector) Serial(ctx context.Context, t Target) string {
	p, ok := lookupPlatform(t.Vendor, t.Model)
	if !ok {
		util.Warnf("serial parsing not implemented for %s/%s", t.Vendor, t.Model)
		return ""
	}

	cred := c.creds.Lookup(t.Serial)
	if cred.Password == "" {
		util.WithMachine(t.Serial, t.MgmtIP).Warn("no password configured, skipping SSH")
		return ""
	}

	res := c.sshExec(ctx, t, cred, p.commands, p.mode, sshTimeout)
	if res.timedOut {
		util.WithMachine(t.Serial, t.MgmtIP).Warn("SSH inventory command timed out")
		return ""
	}
	if res.err != nil {
		util.WithMachine(t.Serial, t.MgmtIP).Warnf("SSH failed: %v", res.err)
		return ""
	}
	return p.parse(res.stdout)
}

// resetCommands restores the factory startup config and reloads. The blank
// line accepts the default filename prompt; y confirms the reload.
var resetCommands = []string{
	"copy initial.cfg startup-config",
	"",
	"reload",
	"y",
	"",
}

// Reset triggers a config reset and reload. The reload severs the SSH
// session, so a timed-out command is the expected success signal. Only
// cisco n9k and c8k are implemented; other pairs report false.
func (c *Connector) Reset(ctx context.Context, t Target) bool {
	vendor, model := strings.ToLower(t.Vendor), strings.ToLower(t.Model)
	if vendor != "cisco" || (model != "n9k" && model != "c8k") {
		util.Infof("reset not implemented for %s/%s", t.Vendor, t.Model)
		return false
	}

	cred := c.creds.Lookup(t.Serial)
	if cred.Password == "" {
		util.WithMachine(t.Serial, t.MgmtIP).Warn("no password configured, cannot reset")
		return false
	}

	res := c.sshExec(ctx, t, cred, resetCommands, modeInteractive, resetTimeout)
	switch {
	case res.timedOut:
		util.WithMachine(t.Serial, t.MgmtIP).Info("reset triggered (timeout expected)")
		return true
	case res.err != nil:
		util.WithMachine(t.Serial, t.MgmtIP).Warnf("reset failed: %v", res.err)
		return false
	}
	return true
}

// sshExec spawns sshpass+ssh for one command set. Single-shot mode passes
// the command as an SSH argument; interactive mode allocates a pseudo-TTY
// and streams the commands on stdin with a trailing newline.
func (c *Connector) sshExec(ctx context.Context, t Target, cred catalog.Credential, commands []string, mode sshMode, timeout time.Duration) execResult {
	args := []string{"-p", cred.Password, "ssh"}
	args = append(args, sshOptions...)
	if t.Port != 0 && t.Port != catalog.DefaultPort {
		args = append(args, "-p", strconv.Itoa(t.Port))
	}

	var stdin string
	switch mode {
	case modeSingleShot:
		args = append(args, cred.Username+"@"+t.MgmtIP, commands[0])
	default:
		args = append(args, "-tt", cred.Username+"@"+t.MgmtIP)
		stdin = strings.Join(append(append([]string{}, commands...), ""), "\n")
	}

	res := c.run.run(ctx, stdin, timeout, "sshpass", args...)
	if !res.timedOut && res.err == nil && res.exitCode != 0 {
		util.WithMachine(t.Serial, t.MgmtIP).Warnf("SSH returned %d, stderr=%s",
			res.exitCode, strings.TrimSpace(res.stderr))
	}
	return res
}

// Package fingerprint derives a stable device fingerprint from hardware and
// environment signals. The fingerprint is a recovery heuristic for re-finding
// a device's identity after local state is lost -- it never gates access.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jheath/partsbin/pkg/models"
)

// Probe collects one named signal. Probes must be deterministic for a given
// machine state; a probe that cannot collect returns an empty value, which
// is recorded as-is so the probe set stays stable across runs.
type Probe struct {
	Name    string
	Collect func() string
}

// DefaultProbes returns the standard probe set.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: "hostname", Collect: probeHostname},
		{Name: "os", Collect: func() string { return runtime.GOOS }},
		{Name: "arch", Collect: func() string { return runtime.GOARCH }},
		{Name: "cpus", Collect: func() string { return strconv.Itoa(runtime.NumCPU()) }},
		{Name: "timezone", Collect: probeTimezone},
		{Name: "locale", Collect: probeLocale},
		{Name: "macs", Collect: probeMACs},
		{Name: "machine_id", Collect: probeMachineID},
	}
}

// Collect runs every probe and returns the raw fingerprint payload.
func Collect(probes []Probe) models.Fingerprint {
	fp := make(models.Fingerprint, len(probes))
	for _, p := range probes {
		fp[p.Name] = p.Collect()
	}
	return fp
}

// Hash serializes a fingerprint deterministically (sorted key=value lines)
// and returns its SHA-256 hex digest. Two runs with identical signals
// always produce the same hash.
func Hash(fp models.Fingerprint) string {
	keys := make([]string, 0, len(fp))
	for k := range fp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fp[k])
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Platform returns the os/arch pair reported alongside registrations.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Timezone returns the local IANA zone name when resolvable.
func Timezone() string {
	return probeTimezone()
}

func probeHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

func probeTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	name, _ := time.Now().Zone()
	return name
}

func probeLocale() string {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// probeMACs returns the sorted hardware addresses of physical-looking
// interfaces. Loopback and interfaces without a MAC are skipped.
func probeMACs() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	sort.Strings(macs)
	return strings.Join(macs, ",")
}

// probeMachineID reads the systemd machine ID where available.
func probeMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if b, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

// Package templates holds the configuration files aibox writes, embedded at
// build time. Rendering is pure: no file or system access.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Template names.
const (
	NginxConf         = "nginx.conf"
	Caddyfile         = "Caddyfile"
	CaddyfileLocal    = "Caddyfile.local"
	OpenWebUIService  = "openwebui.service"
	GlancesConf       = "glances.conf"
	GlancesWebService = "glances-web.service"
	Hosts             = "hosts"
)

//go:embed files/*.tmpl
var files embed.FS

var funcs = template.FuncMap{
	"join":  strings.Join,
	"sites": sites,
}

var parsed = template.Must(
	template.New("").Funcs(funcs).Option("missingkey=error").ParseFS(files, "files/*.tmpl"),
)

// Data carries every substitution point. Templates pick what they need.
type Data struct {
	ServerIP  string
	Hostname  string
	SiteNames []string // distinct names the proxy answers on: server IP, hostname
	Domain    string   // local-domain variant

	User string
	Home string
	UVX  string // absolute path of uvx

	WebUIPort        int
	WebUIPublicPort  int
	Python           string
	WebUIPackage     string
	OllamaPort       int
	OllamaPublicPort int

	GlancesEnabled         bool
	GlancesPort            int
	GlancesPublicPort      int
	GlancesConfig          string
	GlancesEnabledPlugins  []string
	GlancesDisabledPlugins []string

	TLSCert string
	TLSKey  string

	HostNames []string // hosts file entries
}

// Names lists the available templates.
func Names() []string {
	return []string{NginxConf, Caddyfile, CaddyfileLocal, OpenWebUIService, GlancesConf, GlancesWebService, Hosts}
}

// Render executes the named template with d.
func Render(name string, d Data) ([]byte, error) {
	t := parsed.Lookup(name + ".tmpl")
	if t == nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// sites renders a Caddy site address list, e.g. "https://10.0.0.5:8443, https://box:8443".
func sites(port int, names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, fmt.Sprintf("https://%s:%d", n, port))
	}
	return strings.Join(out, ", ")
}

// glancesPlugins is the full plugin set of Glances 4.x.
var glancesPlugins = []string{
	"alert", "amps", "cloud", "connections", "containers", "core", "cpu",
	"diskio", "folders", "fs", "gpu", "help", "ip", "irq", "load", "mem",
	"memswap", "network", "now", "percpu", "ports", "processcount",
	"processlist", "programlist", "quicklook", "raid", "sensors", "smart",
	"system", "uptime", "wifi",
}

// GlancesPlugins splits the known plugins into the enabled set (in the
// order given) and everything else, sorted.
func GlancesPlugins(enabled []string) (on, off []string) {
	want := make(map[string]bool, len(enabled))
	for _, p := range enabled {
		if !want[p] {
			want[p] = true
			on = append(on, p)
		}
	}
	for _, p := range glancesPlugins {
		if !want[p] {
			off = append(off, p)
		}
	}
	sort.Strings(off)
	return on, off
}

// SiteNames returns ip and hostname without empties or duplicates.
func SiteNames(ip, hostname string) []string {
	var out []string
	for _, n := range []string{ip, hostname} {
		if n == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == n {
				dup = true
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}

package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Data {
	on, off := GlancesPlugins([]string{"cpu", "mem", "fs", "gpu", "sensors"})
	return Data{
		ServerIP:               "192.168.1.50",
		Hostname:               "aibox",
		SiteNames:              SiteNames("192.168.1.50", "aibox"),
		Domain:                 "ai.lan",
		User:                   "alice",
		Home:                   "/home/alice",
		UVX:                    "/home/alice/.local/bin/uvx",
		WebUIPort:              8080,
		WebUIPublicPort:        8443,
		Python:                 "3.11",
		WebUIPackage:           "open-webui@latest",
		OllamaPort:             11434,
		OllamaPublicPort:       11435,
		GlancesEnabled:         true,
		GlancesPort:            61208,
		GlancesPublicPort:      61209,
		GlancesConfig:          "/home/alice/.config/glances/glances.conf",
		GlancesEnabledPlugins:  on,
		GlancesDisabledPlugins: off,
		TLSCert:                "/etc/nginx/ssl/aibox.crt",
		TLSKey:                 "/etc/nginx/ssl/aibox.key",
		HostNames:              []string{"chat.ai.lan", "ollama.ai.lan"},
	}
}

func TestRender_AllTemplates(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			out, err := Render(name, sample())
			require.NoError(t, err)
			assert.NotEmpty(t, out)
			assert.NotContains(t, string(out), "<no value>")
		})
	}
}

func TestRender_Unknown(t *testing.T) {
	_, err := Render("apache.conf", sample())
	assert.Error(t, err)
}

func TestRender_NginxPorts(t *testing.T) {
	out, err := Render(NginxConf, sample())
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "listen 443 ssl default_server;")
	assert.Contains(t, s, "listen 8443 ssl;")
	assert.Contains(t, s, "listen 11435 ssl;")
	assert.Contains(t, s, "listen 61209 ssl;")
	assert.Contains(t, s, "proxy_pass http://127.0.0.1:8080;")
	assert.Contains(t, s, "proxy_pass http://127.0.0.1:11434;")
	assert.Contains(t, s, "ssl_certificate_key /etc/nginx/ssl/aibox.key;")
	assert.Contains(t, s, "server_name 192.168.1.50 aibox localhost;")
}

func TestRender_NginxWithoutGlances(t *testing.T) {
	d := sample()
	d.GlancesEnabled = false
	out, err := Render(NginxConf, d)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "61209")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(out)), "}"))
}

func TestRender_Caddyfile(t *testing.T) {
	out, err := Render(Caddyfile, sample())
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "https://192.168.1.50:8443, https://aibox:8443 {")
	assert.Contains(t, s, "https://192.168.1.50:443, https://aibox:443, https://localhost:443 {")
	assert.Contains(t, s, "tls internal")
	assert.Contains(t, s, "reverse_proxy 127.0.0.1:61208")
}

func TestRender_CaddyfileLocal(t *testing.T) {
	d := sample()
	d.GlancesEnabled = false
	out, err := Render(CaddyfileLocal, d)
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "chat.ai.lan {")
	assert.Contains(t, s, "ollama.ai.lan {")
	assert.NotContains(t, s, "glances.ai.lan")
}

func TestRender_OpenWebUIService(t *testing.T) {
	out, err := Render(OpenWebUIService, sample())
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "User=alice\n")
	assert.Contains(t, s, "ExecStart=/home/alice/.local/bin/uvx --python 3.11 open-webui@latest serve --host 127.0.0.1 --port 8080\n")
	assert.Contains(t, s, "Restart=always\n")
}

func TestRender_GlancesConf(t *testing.T) {
	out, err := Render(GlancesConf, sample())
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "[cpu]\ndisable=False")
	assert.Contains(t, s, "[sensors]\ndisable=False")
	assert.Contains(t, s, "[network]\ndisable=True")
	assert.NotContains(t, s, "[cpu]\ndisable=True")
}

func TestRender_GlancesWebService(t *testing.T) {
	out, err := Render(GlancesWebService, sample())
	require.NoError(t, err)
	assert.Contains(t, string(out), "-B 127.0.0.1 -p 61208 -C /home/alice/.config/glances/glances.conf")
}

func TestRender_Hosts(t *testing.T) {
	out, err := Render(Hosts, sample())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 chat.ai.lan\n127.0.0.1 ollama.ai.lan\n", string(out))
}

func TestGlancesPlugins(t *testing.T) {
	on, off := GlancesPlugins([]string{"gpu", "cpu", "cpu"})
	assert.Equal(t, []string{"gpu", "cpu"}, on)
	assert.NotContains(t, off, "cpu")
	assert.NotContains(t, off, "gpu")
	assert.Contains(t, off, "network")
	assert.IsIncreasing(t, off)
}

func TestSiteNames(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.5", "box"}, SiteNames("10.0.0.5", "box"))
	assert.Equal(t, []string{"box"}, SiteNames("", "box"))
	assert.Equal(t, []string{"10.0.0.5"}, SiteNames("10.0.0.5", "10.0.0.5"))
}

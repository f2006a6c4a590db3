package cmd

import "github.com/flo-mic/aibox/internal/config"

// variantPreset describes a proxy layout in the init wizard.
type variantPreset struct {
	label string
	guide string // printed after selection; <ip> and <domain> are replaced
}

var variantPresets = map[config.Variant]variantPreset{
	config.VariantNginx: {
		label: "nginx with a self-signed certificate",
		guide: `  Open WebUI   https://<ip>  and  https://<ip>:8443
  Ollama API   https://<ip>:11435
  Glances      https://<ip>:61209

  The certificate is self-signed and valid for ten years.
  Browsers warn once; accept it or import /etc/nginx/ssl/aibox.crt.`,
	},

	config.VariantCaddy: {
		label: "Caddy with its internal CA",
		guide: `  Open WebUI   https://<ip>  and  https://<ip>:8443
  Ollama API   https://<ip>:11435
  Glances      https://<ip>:61209

  Caddy issues certificates from its own local CA.
  Trust it on clients with the root in /var/lib/caddy/pki/authorities/local/root.crt.`,
	},

	config.VariantLocalDomain: {
		label: "Caddy on chat.<domain>, ollama.<domain>, glances.<domain>",
		guide: `  Open WebUI   https://chat.<domain>
  Ollama API   https://ollama.<domain>
  Glances      https://glances.<domain>

  Only ports 22, 80 and 443 are opened.
  Point these names at <ip> in your router's DNS or each client's hosts file.`,
	},
}

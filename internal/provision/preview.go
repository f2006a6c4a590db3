package provision

import (
	"os"
	"path/filepath"
	"time"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/systemd"
	"github.com/flo-mic/aibox/internal/templates"
	"github.com/flo-mic/aibox/internal/tlscert"
)

// File is a rendered file and where apply would put it.
type File struct {
	Path string
	Data []byte
	Mode os.FileMode
}

// Preview renders every file apply writes for env's configuration, without
// touching the host. Only Config, User, ServerIP, Hostname and Now are read
// from env. For the local-domain variant the hosts entry is the block apply
// appends, not the whole file.
func Preview(env *Env) ([]File, error) {
	if env.Now == nil {
		env.Now = time.Now
	}
	cfg := env.Config
	d := templateData(env)
	d.UVX = filepath.Join(uvDirs(env)[0], "uvx")

	var out []File
	add := func(name, path string, mode os.FileMode) error {
		data, err := templates.Render(name, d)
		if err != nil {
			return err
		}
		out = append(out, File{Path: path, Data: data, Mode: mode})
		return nil
	}

	if cfg.Variant == config.VariantNginx {
		pair, err := certPair(env)
		if err != nil {
			return nil, err
		}
		d.TLSKey = filepath.Join(cfg.TLS.Dir, tlscert.KeyFile)
		d.TLSCert = filepath.Join(cfg.TLS.Dir, tlscert.CertFile)
		out = append(out,
			File{Path: d.TLSKey, Data: pair.KeyPEM, Mode: tlscert.KeyMode},
			File{Path: d.TLSCert, Data: pair.CertPEM, Mode: tlscert.CertMode},
		)
		if err := add(templates.NginxConf, NginxConfPath, 0644); err != nil {
			return nil, err
		}
	} else {
		if err := add(caddyTemplate(cfg), CaddyfilePath, 0644); err != nil {
			return nil, err
		}
	}
	if cfg.Variant == config.VariantLocalDomain {
		if err := add(templates.Hosts, cfg.LocalDomain.HostsFile, 0644); err != nil {
			return nil, err
		}
	}

	if cfg.Glances.Enabled {
		if err := add(templates.GlancesConf, glancesConfigPath(env), 0644); err != nil {
			return nil, err
		}
		if err := add(templates.GlancesWebService, filepath.Join(systemd.UnitDir, "glances-web.service"), 0644); err != nil {
			return nil, err
		}
	}
	if err := add(templates.OpenWebUIService, filepath.Join(systemd.UnitDir, "openwebui.service"), 0644); err != nil {
		return nil, err
	}
	return out, nil
}

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flo-mic/aibox/internal/archive"
	"github.com/flo-mic/aibox/internal/host"
	"github.com/flo-mic/aibox/internal/provision"
)

func newRenderCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	c := &cobra.Command{
		Use:   "render",
		Short: "Render the generated files for review",
		Long: `Render every file apply would write, including a sample certificate.
With --out DIR the files are laid out below DIR as on the target system;
with --out FILE.tar.gz they are bundled into an archive. Nothing on the
host is changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ip := net.ParseIP(v.GetString("ip"))
			if ip == nil || ip.To4() == nil {
				return fmt.Errorf("--ip %q is not an IPv4 address", v.GetString("ip"))
			}
			name, err := host.InvokingUserName(cfg.User)
			if err != nil {
				return err
			}

			files, err := provision.Preview(&provision.Env{
				Config:   cfg,
				User:     host.User{Name: name, Home: filepath.Join("/home", name)},
				ServerIP: ip.To4(),
				Hostname: v.GetString("hostname"),
				Now:      time.Now,
			})
			if err != nil {
				return err
			}
			return writeRendered(stdout, v.GetString("out"), files)
		},
	}
	c.Flags().StringP("out", "o", "aibox-render", "output directory, or a path ending in .tar.gz")
	c.Flags().String("ip", "192.0.2.10", "server IPv4 address to render with")
	c.Flags().String("hostname", "aibox", "hostname to render with")
	return c
}

func writeRendered(stdout io.Writer, out string, files []provision.File) error {
	if strings.HasSuffix(out, ".tar.gz") || strings.HasSuffix(out, ".tgz") {
		entries := make([]archive.Entry, len(files))
		for i, f := range files {
			entries[i] = archive.Entry{Name: f.Path, Data: f.Data, Mode: f.Mode}
		}
		var buf bytes.Buffer
		if err := archive.WriteBundle(&buf, "", entries, time.Now()); err != nil {
			return err
		}
		if err := os.WriteFile(out, buf.Bytes(), 0600); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %d files to %s\n", len(files), out)
		return nil
	}

	for _, f := range files {
		dst := filepath.Join(out, f.Path)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, f.Data, f.Mode); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  %s\n", dst)
	}
	fmt.Fprintf(stdout, "Wrote %d files below %s\n", len(files), out)
	return nil
}

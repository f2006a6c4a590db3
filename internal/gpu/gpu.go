// Package gpu classifies the host's graphics hardware from PCI enumeration
// text and maps the result to the Arch driver packages for that vendor.
package gpu

import (
	"strings"
)

// Vendor is the detected GPU vendor.
type Vendor int

const (
	None    Vendor = iota // no recognized GPU, CPU-only
	NVIDIA                // proprietary nvidia driver
	AMD                   // mesa + radeon vulkan
	Intel                 // mesa + intel vulkan
	Unknown               // enumeration was unavailable
)

func (v Vendor) String() string {
	switch v {
	case None:
		return "none"
	case NVIDIA:
		return "nvidia"
	case AMD:
		return "amd"
	case Intel:
		return "intel"
	default:
		return "unknown"
	}
}

// displayClasses are the PCI class names lspci prints for graphics devices.
var displayClasses = []string{"vga compatible controller", "3d controller", "display controller"}

// markers lists the substrings per vendor in precedence order.
var markers = []struct {
	vendor Vendor
	words  []string
}{
	{NVIDIA, []string{"nvidia"}},
	{AMD, []string{"amd", "ati ", "radeon"}},
	{Intel, []string{"intel"}},
}

// Classify returns the GPU vendor found in lspci output. Only display
// controller lines are considered when any exist, so an Intel chipset next to
// an NVIDIA card does not count. When several vendors match, NVIDIA wins over
// AMD, which wins over Intel.
func Classify(lspci string) Vendor {
	text := strings.ToLower(strings.TrimSpace(lspci))
	if text == "" {
		return Unknown
	}

	if lines := displayLines(text); len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	// "ati " needs a trailing boundary at end of text too.
	text += " "

	for _, m := range markers {
		for _, w := range m.words {
			if strings.Contains(text, w) {
				return m.vendor
			}
		}
	}
	return None
}

func displayLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, class := range displayClasses {
			if strings.Contains(line, class) {
				out = append(out, line)
				break
			}
		}
	}
	return out
}

// Drivers returns the packages to install for v. None and Unknown need none.
func Drivers(v Vendor) []string {
	switch v {
	case NVIDIA:
		return []string{"nvidia", "nvidia-utils", "nvidia-settings"}
	case AMD:
		return []string{"mesa", "vulkan-radeon", "libva-mesa-driver"}
	case Intel:
		return []string{"mesa", "vulkan-intel", "intel-media-driver"}
	default:
		return nil
	}
}

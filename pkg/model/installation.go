package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

// LicenseMode is the license the node is bootstrapped with.
type LicenseMode string

const (
	// LicenseBasic is the free self-generated license.
	LicenseBasic LicenseMode = "basic"

	// LicenseTrial is the self-generated trial license.
	LicenseTrial LicenseMode = "trial"
)

// DefaultProductName is used to derive the temporary installation directory.
const DefaultProductName = "Elasticsearch"

// DefaultHTTPPort is the HTTP port a node listens on when none is configured.
const DefaultHTTPPort = 9200

// Installation aggregates every user-supplied and discovered setting the
// installer tasks read from. A small number of tasks write discovered facts
// back through Discovered.
type Installation struct {
	// ProductName names the product being installed.
	ProductName string `yaml:"product_name" validate:"required"`

	// Version is the version being installed.
	Version string `yaml:"version" validate:"required,semver"`

	// ExistingVersion is the version already installed, if any.
	ExistingVersion string `yaml:"existing_version,omitempty" validate:"omitempty,semver"`

	// Locations holds the on-disk layout.
	Locations Locations `yaml:"locations"`

	// Node holds network and cluster settings.
	Node Node `yaml:"node"`

	// Service controls service registration.
	Service Service `yaml:"service"`

	// XPack holds security and licensing selections.
	XPack XPack `yaml:"xpack"`

	// Certificates controls TLS certificate generation.
	Certificates Certificates `yaml:"certificates"`

	// Plugins controls plugin removal on uninstall.
	Plugins Plugins `yaml:"plugins"`

	// Uninstall controls what uninstall removes.
	Uninstall Uninstall `yaml:"uninstall"`

	// Discovered holds values discovered at runtime (environment variables)
	// so later tasks in the same process see consistent state.
	Discovered map[string]string `yaml:"-"`
}

// Locations is the on-disk layout of an installation.
type Locations struct {
	InstallDir         string `yaml:"install_dir" validate:"required"`
	ConfigDir          string `yaml:"config_dir" validate:"required"`
	DataDir            string `yaml:"data_dir" validate:"required"`
	LogsDir            string `yaml:"logs_dir" validate:"required"`
	PreviousInstallDir string `yaml:"previous_install_dir,omitempty"`

	// TempDir is the base directory the per-installation temp directory
	// lives under. Defaults to os.TempDir().
	TempDir string `yaml:"temp_dir,omitempty"`
}

// Node holds the node's network settings.
type Node struct {
	ClusterName string `yaml:"cluster_name" validate:"required"`
	NodeName    string `yaml:"node_name,omitempty"`
	NetworkHost string `yaml:"network_host,omitempty"`
	HTTPPort    int    `yaml:"http_port" validate:"min=1,max=65535"`
}

// Service controls whether the node is registered and started as a service.
type Service struct {
	Install           bool   `yaml:"install"`
	StartAfterInstall bool   `yaml:"start_after_install"`
	Name              string `yaml:"name" validate:"required_if=Install true"`
	DisplayName       string `yaml:"display_name,omitempty"`
	Executable        string `yaml:"executable,omitempty"`
}

// XPack holds security and licensing selections.
type XPack struct {
	Enabled                    bool        `yaml:"enabled"`
	SecurityEnabled            bool        `yaml:"security_enabled"`
	License                    LicenseMode `yaml:"license,omitempty" validate:"omitempty,oneof=basic trial"`
	LicenseFile                string      `yaml:"license_file,omitempty" validate:"omitempty,file"`
	SkipSettingPasswords       bool        `yaml:"skip_setting_passwords"`
	BootstrapPassword          string      `yaml:"bootstrap_password,omitempty"`
	ElasticUserPassword        string      `yaml:"elastic_user_password,omitempty"`
	KibanaUserPassword         string      `yaml:"kibana_user_password,omitempty"`
	LogstashSystemUserPassword string      `yaml:"logstash_system_user_password,omitempty"`
}

// Certificates controls TLS certificate generation.
type Certificates struct {
	Generate    bool   `yaml:"generate"`
	Tool        string `yaml:"tool,omitempty" validate:"required_if=Generate true"`
	InputFile   string `yaml:"input_file,omitempty" validate:"required_if=Generate true"`
	OutputFile  string `yaml:"output_file,omitempty" validate:"required_if=Generate true"`
	StderrFatal bool   `yaml:"stderr_fatal"`
}

// Plugins controls plugin removal.
type Plugins struct {
	// Tool is the plugin executable relative to an install directory.
	Tool string `yaml:"tool,omitempty"`
}

// Uninstall controls what uninstall removes.
type Uninstall struct {
	// RemoveData also deletes the data directory. It is kept by default.
	RemoveData bool `yaml:"remove_data"`
}

// New returns an installation with defaults applied.
func New() *Installation {
	m := &Installation{}
	m.ApplyDefaults()
	return m
}

// ApplyDefaults fills unset fields with their defaults.
func (m *Installation) ApplyDefaults() {
	if m.ProductName == "" {
		m.ProductName = DefaultProductName
	}
	if m.Node.HTTPPort == 0 {
		m.Node.HTTPPort = DefaultHTTPPort
	}
	if m.Node.ClusterName == "" {
		m.Node.ClusterName = "elasticsearch"
	}
	if m.Service.Name == "" {
		m.Service.Name = "elasticsearch"
	}
	if m.Locations.TempDir == "" {
		m.Locations.TempDir = os.TempDir()
	}
	if m.Locations.InstallDir != "" {
		if m.Locations.ConfigDir == "" {
			m.Locations.ConfigDir = filepath.Join(m.Locations.InstallDir, "config")
		}
		if m.Locations.DataDir == "" {
			m.Locations.DataDir = filepath.Join(m.Locations.InstallDir, "data")
		}
		if m.Locations.LogsDir == "" {
			m.Locations.LogsDir = filepath.Join(m.Locations.InstallDir, "logs")
		}
	}
	if m.Plugins.Tool == "" {
		m.Plugins.Tool = filepath.Join("bin", "elasticsearch-plugin")
	}
	if m.Discovered == nil {
		m.Discovered = make(map[string]string)
	}
}

// MajorVersion returns the major component of the version being installed.
func (m *Installation) MajorVersion() (int, error) {
	v, err := version.NewVersion(m.Version)
	if err != nil {
		return 0, fmt.Errorf("invalid product version %q: %w", m.Version, err)
	}
	return v.Segments()[0], nil
}

// ExistingVersionInstalled reports whether an earlier version is present.
func (m *Installation) ExistingVersionInstalled() bool {
	return strings.TrimSpace(m.ExistingVersion) != ""
}

// ServiceStartedAfterInstall reports whether the node is expected to be
// running once install completes.
func (m *Installation) ServiceStartedAfterInstall() bool {
	return m.Service.Install && m.Service.StartAfterInstall
}

var licenseTypePattern = regexp.MustCompile(`"type"\s*:\s*"(?P<licenseType>.*?)"`)

// UploadedLicenseType returns the lower-cased license type declared in the
// license file, or "" when there is no readable license file.
func (m *Installation) UploadedLicenseType() string {
	if m.XPack.LicenseFile == "" {
		return ""
	}
	content, err := os.ReadFile(m.XPack.LicenseFile)
	if err != nil {
		return ""
	}
	match := licenseTypePattern.FindSubmatch(content)
	if match == nil {
		return ""
	}
	return strings.ToLower(string(match[1]))
}

// NeedsPasswords reports whether built-in account passwords must be set
// during install.
func (m *Installation) NeedsPasswords() bool {
	x := m.XPack
	if !x.Enabled || !m.ServiceStartedAfterInstall() {
		return false
	}
	uploaded := m.UploadedLicenseType()
	licensed := x.License == LicenseTrial || (uploaded != "" && uploaded != string(LicenseBasic))
	return licensed && !x.SkipSettingPasswords && x.SecurityEnabled
}

// NeedsLicense reports whether a license file has to be uploaded.
func (m *Installation) NeedsLicense() bool {
	return m.XPack.Enabled && m.XPack.LicenseFile != ""
}

// NeedsCertificates reports whether TLS certificates must be generated.
func (m *Installation) NeedsCertificates() bool {
	return m.XPack.Enabled && m.XPack.SecurityEnabled && m.Certificates.Generate
}

// Package config loads the node's options file and renders the server list
// into the coordination service's configuration.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"

    "gopkg.in/yaml.v3"
)

// Option keys as exposed through File.Get.
const (
    KeyNetworkInterface = "network_interface"
    KeyRest             = "rest"
    KeyClientPort       = "client_port"
    KeyRestPort         = "rest_port"
    KeyRenderedConfig   = "rendered_config"
)

// Options is the YAML options file.
type Options struct {
    NetworkInterface string   `yaml:"network_interface"`
    Rest             bool     `yaml:"rest"`
    ClientPort       int      `yaml:"client_port"`
    RestPort         int      `yaml:"rest_port"`
    QuorumPort       int      `yaml:"quorum_port"`
    ElectionPort     int      `yaml:"election_port"`
    RenderedConfig   string   `yaml:"rendered_config"`
    MyIDFile         string   `yaml:"myid_file"`
    Resources        []string `yaml:"resources"`
    Units            Units    `yaml:"units"`
    Hooks            Hooks    `yaml:"hooks"`
}

// Units names the systemd units of the service and its REST gateway.
type Units struct {
    Server string `yaml:"server"`
    Rest   string `yaml:"rest"`
}

// Hooks are argv-style commands run for the lifecycle steps that have no
// unit-level equivalent. An empty hook is a no-op.
type Hooks struct {
    Install           []string `yaml:"install"`
    InitialConfig     []string `yaml:"initial_config"`
    OpenPorts         []string `yaml:"open_ports"`
    UpdateBindAddress []string `yaml:"update_bind_address"`
}

func Defaults() Options {
    return Options{
        ClientPort:     2181,
        RestPort:       9998,
        QuorumPort:     2888,
        ElectionPort:   3888,
        RenderedConfig: "/etc/zookeeper/conf/zoo.cfg",
        MyIDFile:       "/var/lib/zookeeper/myid",
        Units:          Units{Server: "zookeeper.service", Rest: "zookeeper-rest.service"},
    }
}

// Load reads path over Defaults. An empty path yields the defaults.
func Load(path string) (Options, error) {
    o := Defaults()
    if path == "" { return o, nil }
    b, err := os.ReadFile(path)
    if err != nil { return o, fmt.Errorf("config: read %s: %w", path, err) }
    if err := yaml.Unmarshal(b, &o); err != nil { return o, fmt.Errorf("config: parse %s: %w", path, err) }
    if err := o.Validate(); err != nil { return o, fmt.Errorf("config: %s: %w", path, err) }
    return o, nil
}

func (o Options) Validate() error {
    for name, p := range map[string]int{"client_port": o.ClientPort, "rest_port": o.RestPort, "quorum_port": o.QuorumPort, "election_port": o.ElectionPort} {
        if p <= 0 || p > 65535 { return fmt.Errorf("invalid %s %d", name, p) }
    }
    if o.RenderedConfig == "" {
        return errors.New("rendered_config is required")
    }
    if o.Units.Server == "" {
        return errors.New("units.server is required")
    }
    return nil
}

// Values flattens the options that are read by key.
func (o Options) Values() map[string]string {
    return map[string]string{
        KeyNetworkInterface: o.NetworkInterface,
        KeyRest:             strconv.FormatBool(o.Rest),
        KeyClientPort:       strconv.Itoa(o.ClientPort),
        KeyRestPort:         strconv.Itoa(o.RestPort),
        KeyRenderedConfig:   o.RenderedConfig,
    }
}

package config

import (
    "fmt"
    "net"
)

// InterfaceIP returns the first IPv4 address of the named interface, or its
// first address of any family.
func InterfaceIP(name string) (string, error) {
    ifi, err := net.InterfaceByName(name)
    if err != nil { return "", fmt.Errorf("config: interface %s: %w", name, err) }
    addrs, err := ifi.Addrs()
    if err != nil { return "", fmt.Errorf("config: interface %s addrs: %w", name, err) }
    var fallback string
    for _, a := range addrs {
        ipn, ok := a.(*net.IPNet)
        if !ok { continue }
        if v4 := ipn.IP.To4(); v4 != nil { return v4.String(), nil }
        if fallback == "" { fallback = ipn.IP.String() }
    }
    if fallback == "" { return "", fmt.Errorf("config: interface %s has no address", name) }
    return fallback, nil
}

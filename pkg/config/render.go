package config

import (
    "bufio"
    "bytes"
    "fmt"
    "sort"
    "strconv"
    "strings"
)

const serverPrefix = "server."

// RenderServers replaces every server.N line of cfg with one line per peer,
// numbered by the peer's server id and appended after the other lines in id
// order. Peers are hosts; their quorum and election ports are appended.
func RenderServers(cfg []byte, servers map[string]int, quorumPort, electionPort int) []byte {
    var out bytes.Buffer
    sc := bufio.NewScanner(bytes.NewReader(cfg))
    for sc.Scan() {
        line := sc.Text()
        if isServerLine(line) { continue }
        out.WriteString(line)
        out.WriteByte('\n')
    }
    peers := make([]string, 0, len(servers))
    for p := range servers { peers = append(peers, p) }
    sort.Slice(peers, func(i, j int) bool {
        if servers[peers[i]] != servers[peers[j]] { return servers[peers[i]] < servers[peers[j]] }
        return peers[i] < peers[j]
    })
    for _, p := range peers {
        fmt.Fprintf(&out, "%s%d=%s:%d:%d\n", serverPrefix, servers[p], p, quorumPort, electionPort)
    }
    return out.Bytes()
}

// RenderMyID is the content of the service's myid file.
func RenderMyID(id int) []byte { return []byte(strconv.Itoa(id) + "\n") }

// CountServers returns the number of server.N lines in cfg.
func CountServers(cfg []byte) int {
    n := 0
    sc := bufio.NewScanner(bytes.NewReader(cfg))
    for sc.Scan() {
        if isServerLine(sc.Text()) { n++ }
    }
    return n
}

func isServerLine(line string) bool {
    return strings.HasPrefix(strings.TrimSpace(line), serverPrefix)
}

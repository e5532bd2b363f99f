package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"

    zkcli "github.com/amirimatin/go-ensemble/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "zkctl:", err)
        os.Exit(1)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "zkctl",
        Short:         "ZooKeeper ensemble controller",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    zkcli.AddAll(root)
    return root
}

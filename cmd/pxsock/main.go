// Command pxsock is the pxsock client CLI. Grounded on
// Pablu23-Uftp/cmd/uftp/main.go's client-mode dispatch
// (client.GetFile(os.Args[2], os.Args[3])), replaced with
// github.com/spf13/cobra subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pxsock/pxsock/internal/client"
)

func main() {
	var (
		address      string
		clientID     string
		presharedKey string
		passphrase   string
		useTLS       bool
	)

	dialOpts := func() []func(*client.Options) {
		return []func(*client.Options){
			func(o *client.Options) { o.ClientID = clientID },
			func(o *client.Options) { o.UseTLS = useTLS },
			func(o *client.Options) {
				if presharedKey != "" {
					o.Wire.PresharedKey = []byte(presharedKey)
				}
				if passphrase != "" {
					o.Wire.EncryptionPassphrase = []byte(passphrase)
				}
			},
		}
	}

	root := &cobra.Command{Use: "pxsock", Short: "pxsock client: send framed packets to a pxsockd server"}

	sendText := &cobra.Command{
		Use:   "send-text [message]",
		Short: "send a text message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			c := client.New(dialOpts()...)
			sess, err := c.Connect(ctx, address, nil)
			if err != nil {
				return err
			}
			defer sess.Close(nil)
			return client.SendText(ctx, sess, args[0])
		},
	}

	sendFile := &cobra.Command{
		Use:   "send-file [path]",
		Short: "send a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			c := client.New(dialOpts()...)
			sess, err := c.Connect(ctx, address, nil)
			if err != nil {
				return err
			}
			defer sess.Close(nil)
			return client.SendFile(ctx, sess, args[0])
		},
	}

	sendDir := &cobra.Command{
		Use:   "send-dir [path] [archive-name]",
		Short: "compress and send a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()
			c := client.New(dialOpts()...)
			sess, err := c.Connect(ctx, address, nil)
			if err != nil {
				return err
			}
			defer sess.Close(nil)
			return client.SendDirectory(ctx, sess, args[0], args[1])
		},
	}

	for _, cmd := range []*cobra.Command{sendText, sendFile, sendDir} {
		root.AddCommand(cmd)
	}

	root.PersistentFlags().StringVar(&address, "address", "127.0.0.1:9443", "server address")
	root.PersistentFlags().StringVar(&clientID, "client-id", "", "identity offered during the Auth handshake")
	root.PersistentFlags().StringVar(&presharedKey, "preshared-key", "", "shared secret whose digest is carried on the Auth packet")
	root.PersistentFlags().StringVar(&passphrase, "encryption-passphrase", "", "enables per-message encryption")
	root.PersistentFlags().BoolVar(&useTLS, "tls", false, "connect over TLS")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

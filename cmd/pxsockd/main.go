// Command pxsockd runs the pxsock server. Grounded on
// Pablu23-Uftp/cmd/uftp/main.go's argv-dispatch entry point, replaced
// with github.com/spf13/cobra (vango-go-vango's dependency) for real
// flag parsing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pxsock/pxsock/internal/common"
	"github.com/pxsock/pxsock/internal/server"
	"github.com/pxsock/pxsock/internal/session"
)

func main() {
	var (
		address      string
		dataPath     string
		certFile     string
		keyFile      string
		presharedKey string
		passphrase   string
		compress     bool
	)

	root := &cobra.Command{
		Use:   "pxsockd",
		Short: "pxsock server: accepts framed packet connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []func(*server.Options){
				server.WithAddress(address),
			}
			if dataPath != "" {
				opts = append(opts, func(o *server.Options) { o.Datapath = dataPath })
			}
			if certFile != "" && keyFile != "" {
				opts = append(opts, server.WithTLS(certFile, keyFile))
			}
			if presharedKey != "" {
				opts = append(opts, server.WithPresharedKey([]byte(presharedKey)))
			}
			if passphrase != "" {
				opts = append(opts, server.WithEncryptionPassphrase([]byte(passphrase)))
			}
			if compress {
				opts = append(opts, server.WithCompression(true, common.CompressionFlate))
			}

			srv, err := server.New(handleMessage, opts...)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}

	root.Flags().StringVar(&address, "address", "0.0.0.0:9443", "listen address")
	root.Flags().StringVar(&dataPath, "data", "./data", "directory inbound Directory archives are extracted into")
	root.Flags().StringVar(&certFile, "tls-cert", "", "TLS certificate file (enables TLS)")
	root.Flags().StringVar(&keyFile, "tls-key", "", "TLS key file (enables TLS)")
	root.Flags().StringVar(&presharedKey, "preshared-key", "", "shared secret Auth packets are checked against")
	root.Flags().StringVar(&passphrase, "encryption-passphrase", "", "enables per-message encryption")
	root.Flags().BoolVar(&compress, "compress", false, "enable payload compression")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handleMessage(sess *session.Session, pkt *common.Packet) {
	log := logrus.WithFields(logrus.Fields{"kind": pkt.Kind, "client": sess.ClientID()})
	switch pkt.Kind {
	case common.KindMessage:
		log.Infof("Received message: %s", string(pkt.Payload))
	case common.KindFile:
		log.Infof("Received file %q (%d bytes)", pkt.Headers[common.HeaderFilename], len(pkt.Payload))
	case common.KindRequest:
		resp, err := common.NewResponse("ok", nil)
		if err != nil {
			log.WithError(err).Warn("Could not build response")
			return
		}
		if err := sess.Send(context.Background(), resp); err != nil {
			log.WithError(err).Warn("Could not send response")
		}
	default:
		log.Debug("Received packet")
	}
}

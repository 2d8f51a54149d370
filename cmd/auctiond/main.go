package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	golog "github.com/ipfs/go-log/v2"
	"github.com/mdlayher/vsock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cli "github.com/cloudx-io/assetauction/cmd/common"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/memchain"
	"github.com/cloudx-io/assetauction/receipt"
)

var (
	daemonName = "auctiond"
	log        = golog.Logger(daemonName)
	v          = viper.New()
)

func init() {
	flags := []cli.Flag{
		{Name: "listen-addr", DefValue: "127.0.0.1:7400", Description: "TCP listen address"},
		{Name: "vsock-port", DefValue: 0, Description: "Listen on this vsock port instead of TCP"},
		{Name: "max-workers", DefValue: 16, Description: "Maximum concurrent connections"},
		{Name: "read-timeout", DefValue: 30 * time.Second, Description: "Per-connection request read timeout"},
		{Name: "genesis", DefValue: "", Description: "Path to the chain genesis JSON file"},
		{Name: "engine-address", DefValue: "", Description: "Engine custody account address"},
		{Name: "operator", DefValue: "", Description: "Operator address (repeatable or comma separated)", Repeatable: true},
		{Name: "receipt-key", DefValue: "", Description: "PEM EC P-384 key for receipts; a fresh key is generated when empty"},
		{Name: "journal", DefValue: "", Description: "Path of the CBOR event journal; disabled when empty"},
	}
	flags = append(flags, cli.LoggingFlags...)

	cobra.OnInitialize(func() {
		cfgFile := v.GetString("config")
		if cfgFile == "" {
			return
		}
		v.SetConfigFile(cfgFile)
		v.SetConfigType("json")
		cli.CheckErrf("reading configuration: %s", v.ReadInConfig())
	})

	rootCmd.Flags().String("config", "", "Optional JSON configuration file")
	cli.CheckErr(v.BindPFlag("config", rootCmd.Flags().Lookup("config")))
	cli.CheckErr(cli.ConfigureCLI(v, "AUCTIOND", flags, rootCmd))
}

var rootCmd = &cobra.Command{
	Use:   daemonName,
	Short: "auctiond runs the asset auction engine",
	Long:  "auctiond runs the asset auction engine over an in-memory chain and serves JSON requests over TCP or vsock",
	PersistentPreRun: func(c *cobra.Command, args []string) {
		err := cli.ConfigureLogging(v, []string{
			daemonName,
			"auction/engine",
			"auction/journal",
			"auction/receipt",
		})
		cli.CheckErrf("setting log levels: %v", err)
	},
	Run: func(c *cobra.Command, args []string) {
		engineAddr, err := parseAddress(v.GetString("engine-address"))
		cli.CheckErrf("parsing engine address: %v", err)

		var operators []core.Address
		for _, s := range cli.ParseStringSlice(v, "operator") {
			op, err := parseAddress(s)
			cli.CheckErrf("parsing operator: %v", err)
			operators = append(operators, op)
		}

		genesisPath := v.GetString("genesis")
		if genesisPath == "" {
			cli.CheckErr(fmt.Errorf("--genesis is required"))
		}
		genesis, err := memchain.LoadGenesis(genesisPath)
		cli.CheckErrf("loading genesis: %v", err)

		keys, err := loadKeys(v.GetString("receipt-key"))
		cli.CheckErrf("loading receipt key: %v", err)
		keyID, err := keys.KeyID()
		cli.CheckErrf("computing key id: %v", err)
		log.Infof("receipt signing key %s", keyID)

		journalOut, closeJournal, err := openJournal(v.GetString("journal"))
		cli.CheckErrf("opening journal: %v", err)

		server, err := NewServer(Config{
			EngineAddress: engineAddr,
			Operators:     operators,
			Genesis:       genesis,
			Keys:          keys,
			Journal:       journalOut,
			MaxWorkers:    v.GetInt("max-workers"),
			ReadTimeout:   v.GetDuration("read-timeout"),
		})
		cli.CheckErrf("creating server: %v", err)

		listener, err := listen(v.GetString("listen-addr"), uint32(v.GetInt("vsock-port")))
		cli.CheckErrf("creating listener: %v", err)
		log.Infof("auction server listening on %s", listener.Addr())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- server.Serve(ctx, listener) }()

		cli.HandleInterrupt(func() {
			cancel()
			if err := <-done; err != nil {
				log.Errorf("serving: %v", err)
			}
			server.Close()
			log.Infof("journal head %s", server.journal.Head())
			cli.CheckErrf("closing journal: %v", closeJournal())
		})
	},
}

func parseAddress(s string) (core.Address, error) {
	if !common.IsHexAddress(s) {
		return core.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

func loadKeys(path string) (*receipt.KeyManager, error) {
	if path == "" {
		log.Warn("no receipt key configured, generating an ephemeral one")
		return receipt.NewKeyManager()
	}
	return receipt.LoadKeyManager(path)
}

func openJournal(path string) (io.Writer, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func listen(addr string, vsockPort uint32) (net.Listener, error) {
	if vsockPort != 0 {
		l, err := vsock.Listen(vsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	}
	return net.Listen("tcp", addr)
}

func main() {
	cli.CheckErr(rootCmd.Execute())
}

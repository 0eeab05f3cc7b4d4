package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v3"

	"github.com/lanpeer/lanpeer/internal/node"
	"github.com/lanpeer/lanpeer/internal/transfer"
)

// NewApp builds the root command described by spec §6: four required
// positional arguments and one optional trailing positional argument.
//
//	lanpeer <node_id> <udp_port> <broadcast_port> <tcp_port> [simulate_drops]
func NewApp() *cli.Command {
	return &cli.Command{
		Name:      "lanpeer",
		Usage:     "a peer-to-peer LAN file-sharing node",
		ArgsUsage: "<node_id> <udp_port> <broadcast_port> <tcp_port> [simulate_drops:0|1]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "drop-frequency",
				Usage: "drop the transfer connection after every N chunks when simulate_drops is 1",
				Value: transfer.DefaultDropFrequency,
			},
			&cli.StringFlag{
				Name:  "download-dir",
				Usage: "directory downloaded resources are written to",
				Value: "downloads",
			},
			&cli.BoolFlag{
				Name:  "interactive",
				Usage: "open the peer/resource browser instead of running headless",
			},
		},
		Action: rootAction,
	}
}

func rootAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := parseConfig(cmd)
	if err != nil {
		cli.ShowAppHelp(cmd)
		return err
	}

	printBanner()

	n := node.New(cfg)
	log := n.Logger()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- n.Run(runCtx) }()

	fmt.Println(INFO.Render(fmt.Sprintf("node %d listening: udp=%d broadcast=%d tcp=%d", cfg.NodeID, cfg.UDPPort, cfg.BroadcastPort, cfg.TCPPort)))

	if cmd.Bool("interactive") {
		runShell(runCtx, n)
	} else {
		<-runCtx.Done()
	}

	cancel()
	select {
	case err := <-runDone:
		return err
	case <-time.After(2 * time.Second):
		log.Warn("node did not shut down within grace period")
		return nil
	}
}

func parseConfig(cmd *cli.Command) (node.Config, error) {
	if cmd.Args().Len() < 4 {
		return node.Config{}, fmt.Errorf("lanpeer: expected at least 4 positional arguments, got %d", cmd.Args().Len())
	}

	nodeID, err := parseUint32(cmd.Args().Get(0), "node_id")
	if err != nil {
		return node.Config{}, err
	}
	udpPort, err := parsePort(cmd.Args().Get(1), "udp_port")
	if err != nil {
		return node.Config{}, err
	}
	broadcastPort, err := parsePort(cmd.Args().Get(2), "broadcast_port")
	if err != nil {
		return node.Config{}, err
	}
	tcpPort, err := parsePort(cmd.Args().Get(3), "tcp_port")
	if err != nil {
		return node.Config{}, err
	}

	simulateDrops := false
	if cmd.Args().Len() >= 5 {
		switch cmd.Args().Get(4) {
		case "0":
			simulateDrops = false
		case "1":
			simulateDrops = true
		default:
			return node.Config{}, fmt.Errorf("lanpeer: simulate_drops must be 0 or 1, got %q", cmd.Args().Get(4))
		}
	}

	return node.Config{
		NodeID:            nodeID,
		UDPPort:           udpPort,
		BroadcastPort:     broadcastPort,
		TCPPort:           tcpPort,
		SimulateDrops:     simulateDrops,
		DropFrequency:     int(cmd.Int("drop-frequency")),
		DownloadDir:       cmd.String("download-dir"),
		BroadcastInterval: 2 * time.Second,
		ReaperPeriod:      10 * time.Second,
		LogStdout:         true,
	}, nil
}

func parseUint32(s, field string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("lanpeer: %s must be a u32, got %q: %w", field, s, err)
	}
	return uint32(v), nil
}

func parsePort(s, field string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 65535 {
		return 0, fmt.Errorf("lanpeer: %s must be a valid port, got %q", field, s)
	}
	return v, nil
}

func printBanner() {
	f := figure.NewFigure("lanpeer", "", true)
	f.Print()
	fmt.Println()
}

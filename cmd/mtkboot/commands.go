package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-mtkboot/agent"
	"github.com/moffa90/go-mtkboot/bootloader"
	"github.com/moffa90/go-mtkboot/config"
	"github.com/moffa90/go-mtkboot/protocol"
	"github.com/moffa90/go-mtkboot/simulator"
	"github.com/moffa90/go-mtkboot/transport"
)

// ---------------------------------------------------------------------------
// bootCmd
// ---------------------------------------------------------------------------

func bootCmd() *cobra.Command {
	var (
		port      string
		agentPath string
		baud      int
	)

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Handshake with the boot ROM, upload the download agent and run it",
		Long: `Waits for the device to enumerate, performs the boot ROM handshake and
setup commands, uploads the download agent and jumps to it.

Settings come from the configuration file, then MTKBOOT_PORT, MTKBOOT_AGENT
and MTKBOOT_BAUD, then the flags below.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFlag)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Serial.Port = port
			}
			if cmd.Flags().Changed("agent") {
				cfg.Agent.Path = agentPath
			}
			if cmd.Flags().Changed("baud") {
				cfg.Serial.Baud = baud
			}
			if cfg.Agent.Path == "" {
				return errors.New("no download agent: set agent.path, MTKBOOT_AGENT or --agent")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("port", cfg.Serial.Port).Msg("waiting for device")

			opts := append(cfg.Options(),
				bootloader.WithLogger(log.Logger),
				bootloader.WithProgressCallback(newProgressReporter().report),
			)
			result, err := bootloader.Boot(ctx, transport.SerialOpener(cfg.OpenConfig(log.Logger)), opts...)
			if err != nil {
				return err
			}

			printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port of the boot ROM")
	cmd.Flags().StringVarP(&agentPath, "agent", "a", "", "Download agent binary")
	cmd.Flags().IntVarP(&baud, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	return cmd
}

// ---------------------------------------------------------------------------
// simulateCmd
// ---------------------------------------------------------------------------

func simulateCmd() *cobra.Command {
	var (
		agentPath       string
		size            int
		readyByte       uint8
		silent          bool
		failWritesAfter int
		realtime        bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the full bootstrap against a simulated boot ROM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFlag)
			if err != nil {
				return err
			}

			simCfg := simulator.Config{
				Silent:          silent,
				FailWritesAfter: failWritesAfter,
			}
			if cmd.Flags().Changed("ready-byte") {
				simCfg.ReadyByte = &readyByte
			}
			dev := simulator.NewWithConfig(simCfg)

			opts := append(cfg.Options(),
				bootloader.WithLogger(log.Logger),
				bootloader.WithProgressCallback(newProgressReporter().report),
			)
			if agentPath != "" {
				opts = append(opts, bootloader.WithAgentPath(agentPath))
			} else {
				payload := make([]byte, size)
				if _, err := rand.Read(payload); err != nil {
					return fmt.Errorf("generating agent: %w", err)
				}
				opts = append(opts,
					bootloader.WithAgentPath("(generated)"),
					bootloader.WithAgentOpener(func(string) (bootloader.AgentImage, error) {
						return agent.FromBytes(payload), nil
					}),
				)
			}
			if !realtime {
				opts = append(opts, bootloader.WithoutDelays())
			}

			result, err := bootloader.Boot(cmd.Context(), transport.StaticOpener(dev), opts...)
			if err != nil {
				return err
			}

			printResult(cmd, result)
			fmt.Fprintf(cmd.OutOrStdout(), "device: %d bytes loaded at 0x%08X, running=%t\n",
				len(dev.Agent()), dev.AgentAddress(), dev.Running())
			return nil
		},
	}
	cmd.Flags().StringVarP(&agentPath, "agent", "a", "", "Download agent binary (random bytes if empty)")
	cmd.Flags().IntVar(&size, "size", 0x15358, "Size of the generated agent")
	cmd.Flags().Uint8Var(&readyByte, "ready-byte", protocol.HandshakeReady, "Byte the device answers the handshake with")
	cmd.Flags().BoolVar(&silent, "silent", false, "Device never answers")
	cmd.Flags().IntVar(&failWritesAfter, "fail-writes-after", 0, "Device stops accepting bytes after N writes")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Keep the serial pacing delays")
	return cmd
}

// ---------------------------------------------------------------------------
// planCmd
// ---------------------------------------------------------------------------

func planCmd() *cobra.Command {
	var bulk int

	cmd := &cobra.Command{
		Use:   "plan <agent>",
		Short: "Show how a download agent would be split into packets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := agent.Open(args[0])
			if err != nil {
				return &bootloader.ImageOpenError{Path: args[0], Err: err}
			}
			defer img.Close()

			plan, err := protocol.NewTransferPlan(img.Size(), bulk)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agent:   %s\n", img.Path())
			fmt.Fprintf(out, "length:  0x%X (%d bytes)\n", plan.Total, plan.Total)
			fmt.Fprintf(out, "packets: %d x 0x%X", plan.FullPackets, plan.PacketSize)
			if plan.Remainder > 0 {
				fmt.Fprintf(out, " + 0x%X", plan.Remainder)
			}
			fmt.Fprintf(out, " (%d writes)\n", plan.PacketCount())
			fmt.Fprintf(out, "send da: % X\n", protocol.EncodeWord(uint32(plan.Total)))
			return nil
		},
	}
	cmd.Flags().IntVar(&bulk, "bulk", protocol.DefaultMaxBulkSize, "Maximum packet size")
	return cmd
}

// ---------------------------------------------------------------------------
// portsCmd
// ---------------------------------------------------------------------------

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(os.Stderr, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// configCmd
// ---------------------------------------------------------------------------

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFlag)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
}

func printResult(cmd *cobra.Command, result *bootloader.Result) {
	out := cmd.OutOrStdout()
	setup := result.Setup

	fmt.Fprintf(out, "hw code:    % X\n", setup.ChipInfo.HWCode)
	fmt.Fprintf(out, "bl version: % X % X\n", setup.BootloaderVersion.First, setup.BootloaderVersion.Second)
	fmt.Fprintf(out, "register:   % X\n", setup.Read32.Value)
	fmt.Fprintf(out, "uploaded:   %s\n", result.Upload.Plan)
	fmt.Fprintf(out, "checksum:   % X (status % X)\n", result.Transfer.Checksum, result.Transfer.Status)
	fmt.Fprintf(out, "agent says: %q\n", result.Run.Ack)
	fmt.Fprintf(out, "elapsed:    %s\n", result.Elapsed.Round(time.Millisecond))
}

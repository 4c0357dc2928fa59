package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ptapal/experimental-psychology/internal/display"
	"github.com/ptapal/experimental-psychology/internal/terminal"
)

// #region display-cmd

func newDisplayCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Serve this terminal as a remote display for a runner on another host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			term := terminal.New(os.Stdin, cmd.OutOrStdout(), cfg.FeedbackDuration)
			srv := grpc.NewServer()
			display.RegisterDisplayServer(srv, display.NewServer(term, term, term, term))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				srv.Stop()
			}()

			logger.Info("display server listening", zap.String("addr", lis.Addr().String()))
			if err := srv.Serve(lis); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":50061", "address to accept runner connections on")
	return cmd
}

// #endregion display-cmd

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"brainbridge/internal/chat"
)

var errNoRedis = errors.New("chat needs redis.address in the config")

func newChatCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send and watch direct messages",
	}
	cmd.AddCommand(newChatWatchCmd(opts))
	cmd.AddCommand(newChatSendCmd(opts))
	return cmd
}

func newChatWatchCmd(opts *rootOptions) *cobra.Command {
	var me, with int64

	c := &cobra.Command{
		Use:   "watch",
		Short: "Print messages exchanged with another user until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.rdb == nil {
				return errNoRedis
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			transport := chat.NewRedisTransport(a.rdb, a.logger)
			channel := chat.ChannelKey(me, with)
			unsubscribe, err := transport.Subscribe(ctx, channel, func(m chat.Message) {
				fmt.Fprintf(out, "[%s] %d: %s\n", m.SentAt.Local().Format("15:04:05"), m.From, m.Body)
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			a.logger.Info().Str("channel", channel).Msg("watching chat")
			<-ctx.Done()
			return nil
		},
	}

	c.Flags().Int64Var(&me, "me", 0, "your user id")
	c.Flags().Int64Var(&with, "with", 0, "the other user's id")
	_ = c.MarkFlagRequired("me")
	_ = c.MarkFlagRequired("with")
	return c
}

func newChatSendCmd(opts *rootOptions) *cobra.Command {
	var (
		me, to int64
		body   string
	)

	c := &cobra.Command{
		Use:   "send",
		Short: "Send a message to another user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.rdb == nil {
				return errNoRedis
			}

			msg, err := chat.Send(cmd.Context(), chat.NewRedisTransport(a.rdb, a.logger), me, to, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s at %s\n", chat.ChannelKey(me, to), msg.SentAt.Local().Format("15:04:05"))
			return nil
		},
	}

	c.Flags().Int64Var(&me, "me", 0, "your user id")
	c.Flags().Int64Var(&to, "to", 0, "recipient user id")
	c.Flags().StringVar(&body, "body", "", "message text")
	_ = c.MarkFlagRequired("me")
	_ = c.MarkFlagRequired("to")
	_ = c.MarkFlagRequired("body")
	return c
}

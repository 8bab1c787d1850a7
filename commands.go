package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarsiwach/sanews-autofit/credential"
	"github.com/sagarsiwach/sanews-autofit/fit"
	"github.com/sagarsiwach/sanews-autofit/server"
	"github.com/sagarsiwach/sanews-autofit/session"
)

const defaultFrame = "Article"

// outputFlags are shared by the commands that write into a frame.
type outputFlags struct {
	frame   string
	article string
	pdf     string
	debug   string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.frame, "frame", "f", defaultFrame, "article frame to fill")
	f.StringVarP(&o.article, "article", "a", "", "article file (.md with front matter, .json or .yaml)")
	f.StringVarP(&o.pdf, "out", "o", "", "write the filled frame as PDF")
	f.StringVar(&o.debug, "debug", "", "write the filled frame's node tree as JSON")
	_ = cmd.MarkFlagRequired("article")
}

func newDetectCmd(flags *globalFlags) *cobra.Command {
	var frame string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report which article slots a frame provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			res, err := a.send(cmd.Context(), session.Message{
				Type:      session.MsgDetectLayout,
				Selection: []string{frame},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Summary)
		},
	}
	cmd.Flags().StringVarP(&frame, "frame", "f", defaultFrame, "article frame to inspect")
	return cmd
}

func newFillCmd(flags *globalFlags) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a frame with an article and report the overflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			content, err := loadArticle(out.article)
			if err != nil {
				return err
			}
			msg, err := contentMessage(session.MsgFillContent, out.frame, content)
			if err != nil {
				return err
			}
			if _, err := a.send(cmd.Context(), msg); err != nil {
				return err
			}
			return a.writeOutputs(out.frame, out.pdf, out.debug)
		},
	}
	out.register(cmd)
	return cmd
}

func newAutoFitCmd(flags *globalFlags) *cobra.Command {
	var (
		out      outputFlags
		bodyPath string
	)
	cmd := &cobra.Command{
		Use:   "autofit",
		Short: "Fill a frame and rewrite the body until it fits the columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			content, err := loadArticle(out.article)
			if err != nil {
				return err
			}
			msg, err := contentMessage(session.MsgAutoFit, out.frame, content)
			if err != nil {
				return err
			}
			res, err := a.send(ctx, msg)
			if err != nil {
				return err
			}
			if res.Outcome != nil && res.Outcome.Phase == fit.PhaseMaxIterations {
				a.logger.Warn("body still overflows", "overflow", fmt.Sprintf("%.2fmm", res.Outcome.Overflow))
			}
			if bodyPath != "" && res.Outcome != nil {
				if err := writeFile(bodyPath, []byte(res.Outcome.Body+"\n")); err != nil {
					return err
				}
			}
			return a.writeOutputs(out.frame, out.pdf, out.debug)
		},
	}
	out.register(cmd)
	cmd.Flags().StringVar(&bodyPath, "body-out", "", "write the final body text to this file")
	return cmd
}

func newKeyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				if key, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("api key is empty")
			}
			store, err := keyStore(flags)
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), credential.APIKey, key); err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Info("api key saved", "dir", store.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := keyStore(flags)
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), credential.APIKey)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether an API key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := keyStore(flags)
			if err != nil {
				return err
			}
			key, err := store.Get(cmd.Context(), credential.APIKey)
			if err != nil {
				return err
			}
			state := "missing"
			if key != "" {
				state = "stored"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), state)
			return err
		},
	})
	return cmd
}

func keyStore(flags *globalFlags) (*credential.FileStore, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return openCredentials(cfg)
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over HTTP for a settings and progress UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return server.New(a.session, a.renderer, a.logger).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrcrgl/diariesai/checkpoint"
	"github.com/mrcrgl/diariesai/config"
	"github.com/mrcrgl/diariesai/pipeline"
	"github.com/mrcrgl/diariesai/server"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "diaries_ai",
		Short:         "Create daily diary for ig.",
		Long:          "Generates a daily diary post with a matching photorealistic image through an assistant service and optionally publishes it to Instagram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if a.stdout != nil {
		root.SetOut(a.stdout)
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable info logs")
	root.AddCommand(commands(a)...)
	return root
}

// commands is the table of subcommands.
func commands(a *app) []*cobra.Command {
	return []*cobra.Command{
		newGenerateCmd(a),
		newPrepareCmd(a),
		newStatusCmd(a),
		newServeCmd(a),
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		prompt string
		date   string
		post   bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the post for a date and optionally publish it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if date == "" {
				date = a.today()
			}
			report, err := p.Generate(cmd.Context(), pipeline.GenerateRequest{Date: date, Prompt: prompt, Post: post})
			if err != nil {
				return err
			}
			a.infof("generate %s: generated=%t published=%t post_id=%s", report.Date, report.Generated, report.Published, report.PostID)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to use")
	cmd.Flags().StringVar(&date, "date", "", "date of post in YYYY-MM-DD format. Defaults today")
	cmd.Flags().BoolVar(&post, "post", false, "post to ig")
	return cmd
}

func newPrepareCmd(a *app) *cobra.Command {
	var (
		prompt string
		date   string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Store the prompt for a future date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if date == "" {
				date = a.today()
			}
			_, err = p.Prepare(date, prompt)
			return err
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to use")
	cmd.Flags().StringVar(&date, "date", "", "date of post in YYYY-MM-DD format. Defaults today")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which stages are complete for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if date == "" {
				date = a.today()
			}
			_, err = p.Status(date)
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date of post in YYYY-MM-DD format. Defaults today")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local review API over the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cfg, io.Discard)
			if err != nil {
				return err
			}
			srv, err := server.New(checkpoint.NewFileStore(cfg.DataDir), p, a.verbose, a.logger)
			if err != nil {
				return err
			}
			httpSrv := &http.Server{Addr: addr, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			a.logger.Printf("Starting web server on %s", addr)
			return serve(httpSrv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "http listen address")
	return cmd
}

// serve blocks until srv stops; a graceful shutdown is not an error.
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

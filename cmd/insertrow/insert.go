package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cgi"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/insertrow/httputil"
	"github.com/kjk/insertrow/insert"
	"github.com/kjk/insertrow/log"
	"github.com/spf13/cobra"
)

func newMux(h http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/insert", h)
	mux.Handle("/", h)
	return mux
}

func logHTTPRequest(r *http.Request, code int, nWritten int64, dur time.Duration) {
	err := log.HTTPRequest(r, code, nWritten, dur)
	log.IfErrf(err)
}

func newServeCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "run http server accepting POST /insert",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := insert.NewDriver(cfg)
			if err != nil {
				return err
			}
			h := httputil.WithLogging(newMux(insert.NewHandler(d)), logHTTPRequest)
			srv := httputil.NewServer(cfg.HTTPAddr, h)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Logf("serving on %s, store: '%s'\n", cfg.HTTPAddr, cfg.StorePath)
			err = httputil.Serve(ctx, srv, 15*time.Second)
			log.Logf("server stopped\n")
			return err
		},
	}
	cmd.Flags().String("addr", "", "address to listen on, e.g. :8080")
	if err := v.BindPFlag("http_addr", cmd.Flags().Lookup("addr")); err != nil {
		return nil, err
	}
	return cmd, nil
}

// exitFatal ends the process without a response. The web server
// sees a failed CGI program
func exitFatal(o insert.Outcome) {
	log.Close()
	os.Exit(1)
}

// withStdinBody makes h read the body from stdin until EOF when the
// web server didn't set CONTENT_LENGTH. net/http/cgi only reads
// a declared length and sees an empty body otherwise
func withStdinBody(h http.Handler, stdin io.Reader, hasLength bool) http.Handler {
	if hasLength {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = io.NopCloser(stdin)
		r.ContentLength = -1
		h.ServeHTTP(w, r)
	})
}

func newCgiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cgi",
		Short: "handle one request as a CGI program",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// stdout is the response
			log.Out = os.Stderr
			return loadConfig(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := insert.NewDriver(cfg)
			if err != nil {
				return err
			}
			h := insert.NewHandler(d)
			h.OnFatal = exitFatal
			hasLength := os.Getenv("CONTENT_LENGTH") != ""
			return cgi.Serve(withStdinBody(h, os.Stdin, hasLength))
		},
	}
}

func newInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "insert",
		Short:   "append stdin as one record",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := insert.NewDriver(cfg)
			if err != nil {
				return err
			}
			timeStart := time.Now()
			o := d.Insert(os.Stdin)
			insert.LogOutcome(o, time.Since(timeStart), "ip", "stdin")
			if o.Kind.Fatal() {
				exitFatal(o)
			}
			msg, detail := insert.Message(cfg, o)
			if detail != "" {
				msg += "\n" + detail
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <url>",
		Short: "POST stdin to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s string
			err := requests.
				URL(args[0]).
				Client(httputil.NewDefaultTimeoutClient()).
				BodyReader(os.Stdin).
				ContentType("application/octet-stream").
				ToString(&s).
				Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("submitting to '%s': %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

package httputil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// NewTimeoutClient returns a client with connect and read/write timeouts.
// New one must be created for each request
func NewTimeoutClient(connectTimeout time.Duration, readWriteTimeout time.Duration) *http.Client {
	dial := func(ctx context.Context, netw, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: connectTimeout}
		conn, err := d.DialContext(ctx, netw, addr)
		if err != nil {
			return nil, err
		}
		conn.SetDeadline(time.Now().Add(readWriteTimeout))
		return conn, nil
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext: dial,
			Proxy:       http.ProxyFromEnvironment,
		},
	}
}

func NewDefaultTimeoutClient() *http.Client {
	return NewTimeoutClient(time.Second*120, time.Second*120)
}

// LogRequestFunc is called after a request was served
type LogRequestFunc func(r *http.Request, code int, nWritten int64, dur time.Duration)

// WithLogging calls logFn for every request served by h.
// Requests aborted with http.ErrAbortHandler are logged before
// the panic propagates to http.Server
func WithLogging(h http.Handler, logFn LogRequestFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeStart := time.Now()
		cw := &CapturingResponseWriter{ResponseWriter: w}
		defer func() {
			code := cw.StatusCode
			if p := recover(); p != nil {
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					code = 0
				}
				logFn(r, code, cw.Size, time.Since(timeStart))
				panic(p)
			}
			logFn(r, code, cw.Size, time.Since(timeStart))
		}()
		h.ServeHTTP(cw, r)
	})
}

// Serve runs srv until ctx is cancelled, then shuts it down
// giving in-flight requests up to shutdownTimeout to finish
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	chServerErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		// mute error caused by Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		chServerErr <- err
	}()

	select {
	case err := <-chServerErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		// timeout, close remaining connections
		err = srv.Close()
	}
	if errServe := <-chServerErr; errServe != nil {
		return errServe
	}
	return err
}

// NewServer returns http.Server with sane timeouts
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"
)

// callbackTimeout is how long we wait for the browser to deliver the code.
const callbackTimeout = 120 * time.Second

// ErrCallbackTimeout is returned when no redirect arrives within the bound.
var ErrCallbackTimeout = errors.New("timed out waiting for browser authorization")

// callbackResult is the outcome of the single redirect the listener accepts:
// either an authorization code or a provider error pair.
type callbackResult struct {
	code    string
	errCode string
	errDesc string
}

// callbackListener is a one-shot loopback HTTP listener that captures the
// OAuth redirect. It accepts exactly one matching request over its lifetime;
// later requests get an "already completed" page.
type callbackListener struct {
	srv      *http.Server
	resultCh chan callbackResult

	closeOnce sync.Once
}

// newCallbackListener binds 127.0.0.1:port and starts serving the redirect
// endpoint at the root path (Misfit redirect URIs point at "/"). Binding
// happens before the browser is launched so a fast redirect is never lost.
// The caller must Close the listener on every exit path.
func newCallbackListener(ctx context.Context, port int, expectedState string) (*callbackListener, error) {
	resultCh := make(chan callbackResult, 1)

	// sendResult delivers the result exactly once. A browser retry or a
	// second tab hitting the endpoint is answered but never processed.
	var once sync.Once
	sendResult := func(r callbackResult) bool {
		delivered := false
		once.Do(func() {
			resultCh <- r
			delivered = true
		})
		return delivered
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			// Stray requests like /favicon.ico must not consume the capture.
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()

		// Provider error response takes precedence.
		if oauthErr := q.Get("error"); oauthErr != "" {
			desc := q.Get("error_description")
			if !sendResult(callbackResult{errCode: oauthErr, errDesc: desc}) {
				writeCompletedPage(w)
				return
			}
			writeCallbackPage(w, false, oauthErr, desc)
			return
		}

		// Validate state (CSRF protection).
		if state := q.Get("state"); state != expectedState {
			if !sendResult(callbackResult{
				errCode: "state_mismatch",
				errDesc: "state parameter does not match the authorization request",
			}) {
				writeCompletedPage(w)
				return
			}
			writeCallbackPage(w, false, "state_mismatch",
				"State parameter does not match. Possible CSRF attack.")
			return
		}

		code := q.Get("code")
		if code == "" {
			if !sendResult(callbackResult{errCode: "missing_code", errDesc: "code parameter missing"}) {
				writeCompletedPage(w)
				return
			}
			writeCallbackPage(w, false, "missing_code", "No authorization code in callback.")
			return
		}

		if !sendResult(callbackResult{code: code}) {
			writeCompletedPage(w)
			return
		}
		writeCallbackPage(w, true, "", "")
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener on port %d: %w", port, err)
	}

	go func() {
		_ = srv.Serve(ln)
	}()

	return &callbackListener{srv: srv, resultCh: resultCh}, nil
}

// wait blocks until the redirect arrives, the timeout elapses, or ctx is
// cancelled. It does not close the listener; callers own that.
func (l *callbackListener) wait(ctx context.Context, timeout time.Duration) (callbackResult, error) {
	select {
	case result := <-l.resultCh:
		return result, nil
	case <-ctx.Done():
		return callbackResult{}, ctx.Err()
	case <-time.After(timeout):
		return callbackResult{}, ErrCallbackTimeout
	}
}

// close releases the listening socket. Safe to call more than once.
func (l *callbackListener) close() {
	l.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.srv.Shutdown(ctx)
	})
}

// writeCallbackPage writes a minimal HTML response to the browser tab.
func writeCallbackPage(w http.ResponseWriter, success bool, errCode, errDesc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if success {
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body style="font-family:sans-serif;text-align:center;padding:4rem">
  <h1 style="color:#2ea44f">&#10003; Authorization Successful</h1>
  <p>You have authorized the Misfit CLI.</p>
  <p>You can close this tab and return to your terminal.</p>
</body>
</html>`)
		return
	}

	msg := errCode
	if errDesc != "" {
		msg = errDesc
	}
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Failed</title></head>
<body style="font-family:sans-serif;text-align:center;padding:4rem">
  <h1 style="color:#cb2431">&#10007; Authorization Failed</h1>
  <p>%s</p>
  <p>You can close this tab and check your terminal for details.</p>
</body>
</html>`, html.EscapeString(msg))
}

// writeCompletedPage answers requests that arrive after the first capture.
func writeCompletedPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Already Completed</title></head>
<body style="font-family:sans-serif;text-align:center;padding:4rem">
  <h1>Authorization already completed</h1>
  <p>This window can be closed.</p>
</body>
</html>`)
}

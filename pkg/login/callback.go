// pkg/login/callback.go
package login

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Callback carries what the authorization server delivered to the redirect
// URI: a code and state on success, or the provider's error.
type Callback struct {
	Code  string
	State string
	Err   error
}

// ErrCallbackTimeout is delivered when no redirect arrives in time.
var ErrCallbackTimeout = errors.New("timed out waiting for login callback")

// WaitForCallback runs a one-shot HTTP listener on addr serving path and
// returns a channel that yields exactly one Callback. The server shuts
// itself down after the first hit or the timeout.
func WaitForCallback(addr, path string, timeout time.Duration) <-chan Callback {
	out := make(chan Callback, 1)
	hit := make(chan Callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET %s", path), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			desc := q.Get("error_description")
			if desc == "" {
				desc = errCode
			}
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
			hit <- Callback{Err: fmt.Errorf("authorization failed: %s", desc)}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			hit <- Callback{Err: errors.New("authorization code missing in callback request")}
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Login complete. You can close this window.</body></html>"))
		hit <- Callback{Code: code, State: q.Get("state")}
	})

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		select {
		case <-time.After(timeout):
			out <- Callback{Err: ErrCallbackTimeout}
		case cb := <-hit:
			out <- cb
		}
		_ = server.Close()
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			out <- Callback{Err: err}
		}
	}()

	return out
}

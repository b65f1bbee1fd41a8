package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lanternhq/authkit/pkg/logger"
)

// CallbackResult is delivered to the armed attempt when the provider
// redirects back to the loopback listener. Exactly one of Code or Err is
// set; Err is an *AuthorizationError.
type CallbackResult struct {
	Code string
	Err  error
}

// CallbackServer is the loopback redirect listener. One instance binds one
// OS socket for the process lifetime and is re-armed for each authorization
// attempt without rebinding. It services at most one redirect per attempt;
// late or duplicate redirects for an already-resolved attempt are answered
// with a neutral page and dropped.
type CallbackServer struct {
	port   int
	server *http.Server

	mu        sync.Mutex
	attemptID string
	state     string
	pending   chan CallbackResult
}

// NewCallbackServer creates a callback server for the given loopback port.
// Call Start to bind the socket.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{port: port}
}

// Start binds the loopback socket and begins serving. Bind failures are
// returned synchronously so the caller can surface "port in use" errors
// before opening a browser.
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind callback listener on port %d: %w", s.port, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("callback server terminated: %v", err)
		}
	}()

	logger.Debugf("OAuth callback server listening on port %d", s.port)
	return nil
}

// Shutdown stops the listener. Any armed attempt is disarmed first.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.pending != nil {
		close(s.pending)
		s.pending = nil
		s.attemptID = ""
		s.state = ""
	}
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Arm registers the attempt as the one pending redirect delivery and
// returns the channel its result will arrive on. Arming while another
// attempt is pending closes out the prior attempt's channel; the redirect
// for it, should it still arrive, is discarded.
func (s *CallbackServer) Arm(attempt *Attempt) <-chan CallbackResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		logger.Debugf("discarding pending authorization attempt %s", s.attemptID)
		close(s.pending)
	}

	s.attemptID = attempt.ID
	s.state = attempt.State
	s.pending = make(chan CallbackResult, 1)
	return s.pending
}

// Disarm cancels the pending delivery for the given attempt. It is a no-op
// if a different attempt has been armed since.
func (s *CallbackServer) Disarm(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.attemptID != attemptID {
		return
	}
	close(s.pending)
	s.pending = nil
	s.attemptID = ""
	s.state = ""
}

// handleCallback delivers the provider redirect to the armed attempt.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s.mu.Lock()
	pending := s.pending
	state := s.state
	if pending != nil {
		// Single delivery per attempt: disarm before leaving the lock
		// so a duplicate redirect finds nothing to resolve.
		s.pending = nil
		s.attemptID = ""
		s.state = ""
	}
	s.mu.Unlock()

	if pending == nil {
		logger.Debug("ignoring redirect with no pending authorization attempt")
		s.writeNeutralPage(w)
		return
	}

	if errCode := query.Get("error"); errCode != "" {
		err := &AuthorizationError{
			Code:        errCode,
			Description: query.Get("error_description"),
		}
		s.writeErrorPage(w, err)
		pending <- CallbackResult{Err: err}
		return
	}

	if query.Get("state") != state {
		err := &AuthorizationError{Code: "invalid_state", Description: "state parameter mismatch"}
		s.writeErrorPage(w, err)
		pending <- CallbackResult{Err: err}
		return
	}

	code := query.Get("code")
	if code == "" {
		err := &AuthorizationError{Code: "missing_code", Description: "redirect carried no authorization code"}
		s.writeErrorPage(w, err)
		pending <- CallbackResult{Err: err}
		return
	}

	s.writeSuccessPage(w)
	pending <- CallbackResult{Code: code}
}

// setSecurityHeaders sets common security headers for all responses
func (*CallbackServer) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

func (s *CallbackServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeNeutralPage(w)
}

func (s *CallbackServer) writeNeutralPage(w http.ResponseWriter) {
	s.setSecurityHeaders(w)
	s.writePage(w, `
    <div class="container">
        <h1>Lantern Sign-In</h1>
        <div class="message info">
            <p>The sign-in helper is running. Please complete the authentication flow in your browser.</p>
        </div>
    </div>`)
}

func (s *CallbackServer) writeSuccessPage(w http.ResponseWriter) {
	s.setSecurityHeaders(w)
	s.writePage(w, `
    <div class="container">
        <h1>Signed In</h1>
        <div class="message success">
            <p>You have successfully signed in to Lantern. You can close this window and return to the app.</p>
        </div>
    </div>`)
}

func (s *CallbackServer) writeErrorPage(w http.ResponseWriter, err error) {
	s.setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	s.writePage(w, fmt.Sprintf(`
    <div class="container">
        <h1>Sign-In Failed</h1>
        <div class="message error">
            <p>%s</p>
            <p>Please return to the app and try again.</p>
        </div>
    </div>`, html.EscapeString(err.Error())))
}

func (*CallbackServer) writePage(w http.ResponseWriter, body string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Lantern</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .info { background-color: #e7f3ff; border: 1px solid #b3d9ff; color: #0066cc; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
    </style>
</head>
<body>%s
</body>
</html>`, body)
	if _, err := w.Write([]byte(page)); err != nil {
		logger.Warnf("failed to write HTML content: %v", err)
	}
}

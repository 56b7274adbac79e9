// Package server exposes the shell over SSH. Every session runs
// against its own sandboxed in-memory OS, so remote users never touch
// the host.
package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/gliderlabs/ssh"
	"github.com/juju/ratelimit"
	"github.com/spf13/afero"
	gossh "golang.org/x/crypto/ssh"

	"github.com/emanuelstiuj/Mini-Shell/core/config"
	"github.com/emanuelstiuj/Mini-Shell/core/interp"
	"github.com/emanuelstiuj/Mini-Shell/core/logger"
	"github.com/emanuelstiuj/Mini-Shell/core/shell"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// Server accepts SSH connections and hands each one a shell session.
type Server struct {
	cfg       *config.Configuration
	logDest   io.Writer
	sshServer *ssh.Server
}

// New builds a server from the configuration. Session audit records go
// to logDest as JSON lines.
func New(cfg *config.Configuration, logDest io.Writer) (*Server, error) {
	s := &Server{cfg: cfg, logDest: logDest}

	hostKey, err := ensureHostKey(afero.NewOsFs(), cfg.SSH.HostKeyPath)
	if err != nil {
		return nil, err
	}

	s.sshServer = &ssh.Server{
		Addr:    fmt.Sprintf(":%d", cfg.SSH.Port),
		Handler: s.handleSession,
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			return true
		},
	}
	if err := s.sshServer.SetOption(ssh.HostKeyPEM(hostKey)); err != nil {
		return nil, err
	}
	return s, nil
}

// ListenAndServe blocks serving connections.
func (s *Server) ListenAndServe() error {
	log.Printf("starting SSH server on %s", s.sshServer.Addr)
	return s.sshServer.ListenAndServe()
}

// Close stops the listener and any active sessions.
func (s *Server) Close() error {
	return s.sshServer.Close()
}

func (s *Server) handleSession(sess ssh.Session) {
	defer func() {
		// An unrecoverable session failure must not take the server
		// down with it.
		if r := recover(); r != nil {
			log.Printf("session ended abnormally: %v", r)
			sess.Exit(1)
		}
	}()

	sessionLog := logger.New(s.logDest, logger.NewSessionID())

	stdin, stdout := limitStreams(sess, sess, s.cfg.SSH.MaxBytesPerSecond)
	v := newSandboxOS(s.cfg, sess.User())
	v.SetStdin(stdin)
	v.SetStdout(stdout)
	v.SetStderr(stdout)

	_, _, isPTY := sess.Pty()

	in := interp.New(interp.WithFatalFunc(func(format string, args ...interface{}) {
		fmt.Fprintf(stdout, "mini-shell: "+format+"\n", args...)
		panic(fmt.Sprintf(format, args...))
	}))

	sh, err := shell.NewShell(v, shell.Options{
		Interp: in,
		Log:    sessionLog,
		User:   sess.User(),
		IsPTY:  isPTY,
	})
	if err != nil {
		fmt.Fprintf(sess.Stderr(), "mini-shell: %v\n", err)
		sess.Exit(1)
		return
	}

	if raw := sess.RawCommand(); raw != "" {
		sess.Exit(sh.RunCommand(raw))
		return
	}

	if s.cfg.Motd != "" {
		fmt.Fprint(stdout, s.cfg.Motd)
	}
	sess.Exit(sh.RunInteractive())
}

// limitStreams wraps a session's streams with a shared token bucket.
// Zero or negative rates leave them untouched.
func limitStreams(r io.Reader, w io.Writer, bytesPerSecond int64) (io.Reader, io.Writer) {
	if bytesPerSecond <= 0 {
		return r, w
	}
	bucket := ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond)
	return ratelimit.Reader(r, bucket), ratelimit.Writer(w, bucket)
}

// ensureHostKey loads the PEM host key at path, generating and
// persisting one when it is missing. An empty path yields an ephemeral
// key.
func ensureHostKey(fs afero.Fs, keyPath string) ([]byte, error) {
	if keyPath != "" {
		if pemBytes, err := afero.ReadFile(fs, keyPath); err == nil {
			if _, err := gossh.ParsePrivateKey(pemBytes); err != nil {
				return nil, fmt.Errorf("host key %s: %w", keyPath, err)
			}
			return pemBytes, nil
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if keyPath != "" {
		if err := afero.WriteFile(fs, keyPath, pemBytes, 0600); err != nil {
			return nil, err
		}
	}
	return pemBytes, nil
}

// newSandboxOS builds the per-session virtual machine: an empty
// in-memory filesystem skeleton and a handful of in-process programs.
func newSandboxOS(cfg *config.Configuration, user string) vos.VOS {
	fs := afero.NewMemMapFs()
	dirs := []string{"/bin", "/etc", "/tmp", "/root", "/home"}
	if user != "" && user != "root" {
		dirs = append(dirs, "/home/"+user)
	}
	for _, dir := range dirs {
		_ = fs.MkdirAll(dir, 0755)
	}

	programs := sandboxPrograms(user)
	for name := range programs {
		_ = afero.WriteFile(fs, path.Join("/bin", name), []byte("#!"), 0755)
	}
	resolver := func(execPath string) vos.ProcessFunc {
		return programs[path.Base(execPath)]
	}

	sys := vos.NewSystemOS(fs, cfg.Hostname, resolver)
	v := sys.InitProc()
	v.Setenv(shell.EnvPath, "/bin")
	if cfg.Prompt != "" {
		v.Setenv(shell.EnvPrompt, cfg.Prompt)
	}
	return v
}

// sandboxPrograms are the external commands a sandboxed session can
// run. Everything else reports an execution failure.
func sandboxPrograms(user string) map[string]vos.ProcessFunc {
	if user == "" {
		user = "root"
	}
	return map[string]vos.ProcessFunc{
		"echo": func(v vos.VOS) int {
			args := v.Args()[1:]
			for i, arg := range args {
				if i > 0 {
					fmt.Fprint(v.Stdout(), " ")
				}
				fmt.Fprint(v.Stdout(), arg)
			}
			fmt.Fprintln(v.Stdout())
			return 0
		},
		"cat": func(v vos.VOS) int {
			args := v.Args()[1:]
			if len(args) == 0 {
				io.Copy(v.Stdout(), v.Stdin())
				return 0
			}
			for _, name := range args {
				fd, err := v.Open(name)
				if err != nil {
					fmt.Fprintf(v.Stderr(), "cat: %s: No such file or directory\n", name)
					return 1
				}
				io.Copy(v.Stdout(), fd)
				fd.Close()
			}
			return 0
		},
		"true":  func(vos.VOS) int { return 0 },
		"false": func(vos.VOS) int { return 1 },
		"whoami": func(v vos.VOS) int {
			fmt.Fprintln(v.Stdout(), user)
			return 0
		},
		"hostname": func(v vos.VOS) int {
			fmt.Fprintln(v.Stdout(), v.Hostname())
			return 0
		},
	}
}
